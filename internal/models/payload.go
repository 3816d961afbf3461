package models

// UploadFilename is the multipart filename every submission is sent under.
const UploadFilename = "code.py"

// Payload is the normalized submission produced by either input affordance.
type Payload struct {
	Text     string      // Text is the Python source to submit
	Source   InputSource // Source records whether the text was pasted or picked
	Origin   string      // Origin is the picked file's base name, or [UploadFilename] for pasted text
	Filename string      // Filename is the multipart filename sent on the wire
}

// Size returns the payload length in bytes.
func (p Payload) Size() int {
	return len(p.Text)
}
