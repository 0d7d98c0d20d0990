package coordinator

// Store keys shared by every role. Changing any of them breaks the protocol
// between deployed workers.
const (
	QueueRequests            = "record-requests"
	QueueRawRecords          = "raw-records"
	QueueFetcherInitializers = "fetcher-initializers"
	QueueDeadLetter          = "raw-records-dead-letter"

	HashFetchedMarkers = "fetched-markers"
	HashReviews        = "reviews"

	CounterAnalyzerRank = "analyzer-process-rank"
)
