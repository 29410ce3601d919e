package models

// ChatRequest is the payload sent to the chat endpoint. Message is a pointer
// so a missing field can be told apart from an empty one.
type ChatRequest struct {
	Message *string `json:"message"`
}

// ChatResponse is the reply from the chat endpoint, on success and on failure.
type ChatResponse struct {
	Reply string `json:"reply"`
}
