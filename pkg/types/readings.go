package types

// Reading is a single buffered measurement handed over by the host pipeline.
// The whole struct is the wire payload, so field tags follow the host's
// reading record.
type Reading struct {
	// ID is the host's storage identifier; it drives checkpointing.
	ID int64 `json:"id"`
	// AssetCode names the asset the reading belongs to. A nil value means the
	// host supplied no asset code at all.
	AssetCode *string `json:"asset_code"`
	// Reading holds the datapoints of the measurement.
	Reading map[string]interface{} `json:"reading"`
	// Timestamp is the time the host stored the reading.
	Timestamp string `json:"ts,omitempty"`
	// UserTimestamp is the time the reading was taken at the source.
	UserTimestamp string `json:"user_ts,omitempty"`
}

// Batch is an ordered block of readings. Order defines publish order and the
// last delivered id.
type Batch []Reading

// Last returns the final reading of the batch and false when the batch is empty.
func (b Batch) Last() (Reading, bool) {
	if len(b) == 0 {
		return Reading{}, false
	}
	return b[len(b)-1], true
}

// SendResult is what the host's delivery tracking consumes after a send.
type SendResult struct {
	Delivered       bool
	LastDeliveredID int64
	Count           int
}

// NotDelivered is the result reported for any batch that was not fully sent.
func NotDelivered() SendResult {
	return SendResult{}
}

// Delivered builds the result for a batch that was sent in full.
func Delivered(batch Batch) SendResult {
	last, ok := batch.Last()
	if !ok {
		return NotDelivered()
	}
	return SendResult{
		Delivered:       true,
		LastDeliveredID: last.ID,
		Count:           len(batch),
	}
}

// StringPtr is a convenience for building readings with an asset code.
func StringPtr(s string) *string {
	return &s
}
