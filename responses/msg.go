package responses

const MessageTypeError = "error"

type Message struct {
	Type    string `json:"type"` // "error", etc
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"` // application-level logic code
}
