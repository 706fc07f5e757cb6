package simplepublish

import "io"

// FilePart is one uploaded file.
type FilePart struct {
	Reader       io.Reader
	OriginalName string
	MimeType     string
	Size         int64 // -1 when unknown
}

// CreateContentRequest contains parameters for creating a content item.
// Cover and PDF are both required.
type CreateContentRequest struct {
	Category Category
	Title    string
	Author   string
	Genre    string
	Summary  string // defaults to the first 200 characters of Content
	Content  string
	Cover    *FilePart
	PDF      *FilePart
}

// UpdateContentRequest contains parameters for updating a content item.
// Nil fields and files are left unchanged.
type UpdateContentRequest struct {
	Category Category
	ID       int64
	Title    *string
	Author   *string
	Genre    *string
	Summary  *string
	Content  *string
	Cover    *FilePart
	PDF      *FilePart
}

// ListContentRequest contains parameters for listing content items.
type ListContentRequest struct {
	Category Category
	Limit    int
	Offset   int
}
