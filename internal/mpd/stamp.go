// Package mpd edits DASH manifests written by the packager.
package mpd

import (
	"fmt"
	"time"

	"github.com/beevik/etree"

	apperrors "github.com/zsiec/omafgen/internal/errors"
)

// AvailabilityStartTime is the root attribute rewritten by Restamp.
const AvailabilityStartTime = "availabilityStartTime"

// TimeFormat is the UTC layout of AvailabilityStartTime.
const TimeFormat = "2006-01-02T15:04:05Z"

const xmlDeclaration = `version="1.0" encoding="UTF-8"`

// Restamp sets the availabilityStartTime of the MPD at path to now and
// writes the file back with a UTF-8 XML declaration.
func Restamp(path string, now time.Time) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return apperrors.WrapIOError(err, fmt.Sprintf("failed to read %s", path))
	}

	root := doc.Root()
	if root == nil {
		return apperrors.NewValidationError(fmt.Sprintf("%s has no root element", path))
	}
	root.CreateAttr(AvailabilityStartTime, now.UTC().Format(TimeFormat))

	setDeclaration(doc)

	if err := doc.WriteToFile(path); err != nil {
		return apperrors.WrapIOError(err, fmt.Sprintf("failed to write %s", path))
	}
	return nil
}

// setDeclaration replaces the XML declaration or adds one before the root.
func setDeclaration(doc *etree.Document) {
	for _, tok := range doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			pi.Inst = xmlDeclaration
			return
		}
	}
	doc.InsertChildAt(0, etree.NewText("\n"))
	doc.InsertChildAt(0, etree.NewProcInst("xml", xmlDeclaration))
}
