package export

import "context"

// Publisher pushes a rendered document to an external destination, such
// as a shared Google spreadsheet. Implementations return a reference to
// where the document landed.
type Publisher interface {
	Publish(ctx context.Context, doc Document) (string, error)
}
