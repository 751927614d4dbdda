package memory

// Capability says whether a vector store is usable right now.
type Capability struct {
	store  VectorStore
	reason string
}

func Available(store VectorStore) Capability {
	return Capability{store: store}
}

func Unavailable(reason string) Capability {
	if reason == "" {
		reason = "not configured"
	}
	return Capability{reason: reason}
}

// Store returns the store and true when available.
func (c Capability) Store() (VectorStore, bool) {
	return c.store, c.store != nil
}

// Reason explains why the store is unavailable. Empty when available.
func (c Capability) Reason() string {
	if c.store != nil {
		return ""
	}
	if c.reason == "" {
		return "not configured"
	}
	return c.reason
}
