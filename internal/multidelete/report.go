package multidelete

import (
	"encoding/xml"
)

// S3Namespace is the namespace of S3 response documents
const S3Namespace = "http://s3.amazonaws.com/doc/2006-03-01/"

// KeyOutcome is the result for one requested key. An empty Code means the
// key was deleted.
type KeyOutcome struct {
	Key       string
	VersionID string
	Code      string
	Message   string

	// unavailable marks errors where the backend gave no response at all
	unavailable bool
}

// Deleted reports whether the outcome is a success
func (o KeyOutcome) Deleted() bool {
	return o.Code == ""
}

func deletedOutcome(obj ObjectIdentifier) KeyOutcome {
	return KeyOutcome{Key: obj.Key, VersionID: obj.VersionID}
}

func errorOutcome(obj ObjectIdentifier, code, message string) KeyOutcome {
	return KeyOutcome{Key: obj.Key, VersionID: obj.VersionID, Code: code, Message: message}
}

// Report is the ordered set of outcomes for one request
type Report struct {
	Outcomes []KeyOutcome
	Quiet    bool
}

// Counts returns the number of deleted and failed keys
func (r *Report) Counts() (deleted, failed int) {
	for _, o := range r.Outcomes {
		if o.Deleted() {
			deleted++
		} else {
			failed++
		}
	}
	return deleted, failed
}

// DeletedObject is a Deleted element of DeleteResult
type DeletedObject struct {
	Key       string `xml:"Key"`
	VersionId string `xml:"VersionId,omitempty"`
}

// DeleteError is an Error element of DeleteResult
type DeleteError struct {
	Key       string `xml:"Key"`
	VersionId string `xml:"VersionId,omitempty"`
	Code      string `xml:"Code"`
	Message   string `xml:"Message"`
}

// DeleteResult is the response document. Entries keep the request order,
// with Deleted and Error elements interleaved as the outcomes occurred.
type DeleteResult struct {
	Entries []ResultEntry
}

// ResultEntry holds exactly one of Deleted or Error
type ResultEntry struct {
	Deleted *DeletedObject
	Error   *DeleteError
}

// Result builds the DeleteResult document. Quiet mode drops successes only.
func (r *Report) Result() *DeleteResult {
	result := &DeleteResult{Entries: make([]ResultEntry, 0, len(r.Outcomes))}

	for _, o := range r.Outcomes {
		if o.Deleted() {
			if r.Quiet {
				continue
			}
			result.Entries = append(result.Entries, ResultEntry{
				Deleted: &DeletedObject{Key: o.Key, VersionId: o.VersionID},
			})
			continue
		}

		result.Entries = append(result.Entries, ResultEntry{
			Error: &DeleteError{
				Key:       o.Key,
				VersionId: o.VersionID,
				Code:      o.Code,
				Message:   o.Message,
			},
		})
	}

	return result
}

// MarshalXML writes <DeleteResult> with its entries in order
func (d *DeleteResult) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{
		Name: xml.Name{Local: "DeleteResult"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: S3Namespace}},
	}
	if err := e.EncodeToken(start); err != nil {
		return err
	}

	for _, entry := range d.Entries {
		var err error
		switch {
		case entry.Deleted != nil:
			err = e.EncodeElement(entry.Deleted, xml.StartElement{Name: xml.Name{Local: "Deleted"}})
		case entry.Error != nil:
			err = e.EncodeElement(entry.Error, xml.StartElement{Name: xml.Name{Local: "Error"}})
		}
		if err != nil {
			return err
		}
	}

	return e.EncodeToken(start.End())
}
