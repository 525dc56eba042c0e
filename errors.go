package flagpole

// ClientError reports a failure inside the SDK before or after any HTTP
// exchange, such as a transport error or a flag missing from a response.
type ClientError struct {
	msg string
}

// APIError reports a non-success response from the Flagpole API.
type APIError struct {
	Status int
	msg    string
}

func (e ClientError) Error() string {
	return e.msg
}

func (e APIError) Error() string {
	return e.msg
}
