package domain

// Event is a record-level event extracted from a correlated exchange.
type Event interface {
	// ID returns the record identifier the event concerns.
	ID() string
	isEvent()
}

// FetchSucceeded reports a full record returned by the server.
// Raw holds the encoded record result message.
type FetchSucceeded struct {
	RecordID string
	Raw      []byte
}

// FetchFailed reports a record fetch answered with a non-zero error code.
type FetchFailed struct {
	RecordID  string
	ErrorCode uint32
}

// RecordOpened reports that the client began reading a record.
type RecordOpened struct {
	RecordID string
}

func (e FetchSucceeded) ID() string { return e.RecordID }
func (e FetchFailed) ID() string    { return e.RecordID }
func (e RecordOpened) ID() string   { return e.RecordID }

func (FetchSucceeded) isEvent() {}
func (FetchFailed) isEvent()    {}
func (RecordOpened) isEvent()   {}
