package journal

import "sync"

// Memory keeps records in process. Tests and sweeps read them back
// directly.
type Memory struct {
	mu           sync.Mutex
	runs         []Run
	transactions []TransactionRecord
	actions      []ActionRecord
	valuations   []ValuationRecord
	closed       bool
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) RecordTransaction(t TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions = append(m.transactions, t)
	return nil
}

func (m *Memory) RecordAction(a ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, a)
	return nil
}

func (m *Memory) RecordValuation(v ValuationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valuations = append(m.valuations, v)
	return nil
}

func (m *Memory) RecordRun(r Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Memory) Runs() []Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Run(nil), m.runs...)
}

// Transactions returns the records of runID, or every record when runID
// is empty.
func (m *Memory) Transactions(runID string) []TransactionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TransactionRecord
	for _, t := range m.transactions {
		if runID == "" || t.RunID == runID {
			out = append(out, t)
		}
	}
	return out
}

func (m *Memory) Actions(runID string) []ActionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ActionRecord
	for _, a := range m.actions {
		if runID == "" || a.RunID == runID {
			out = append(out, a)
		}
	}
	return out
}

func (m *Memory) Valuations(runID string) []ValuationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ValuationRecord
	for _, v := range m.valuations {
		if runID == "" || v.RunID == runID {
			out = append(out, v)
		}
	}
	return out
}
