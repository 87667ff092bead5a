package distribution

import "coachflow/internal/roster"

// Batch is the ordered list of transcripts delivered to one student in a run.
type Batch struct {
	Student     roster.Entry
	Transcripts []string
}

// Batches is the immutable result of a distribution run, ordered by the
// first delivery to each student.
type Batches struct {
	keys  []string
	byKey map[string]Batch
}

// Len returns the number of students with at least one delivery.
func (b Batches) Len() int { return len(b.keys) }

// Keys returns student keys in delivery order.
func (b Batches) Keys() []string {
	return append([]string(nil), b.keys...)
}

// Get returns a copy of the batch for key.
func (b Batches) Get(key string) (Batch, bool) {
	batch, ok := b.byKey[key]
	if !ok {
		return Batch{}, false
	}
	batch.Transcripts = append([]string(nil), batch.Transcripts...)
	return batch, true
}

// All returns copies of every batch in delivery order.
func (b Batches) All() []Batch {
	out := make([]Batch, 0, len(b.keys))
	for _, key := range b.keys {
		batch, _ := b.Get(key)
		out = append(out, batch)
	}
	return out
}

// builder accumulates deliveries during a run.
type builder struct {
	keys  []string
	byKey map[string]*Batch
}

func newBuilder() *builder {
	return &builder{byKey: make(map[string]*Batch)}
}

func (b *builder) add(student roster.Entry, transcript string) {
	key := student.Key()
	batch, ok := b.byKey[key]
	if !ok {
		batch = &Batch{Student: student}
		b.byKey[key] = batch
		b.keys = append(b.keys, key)
	}
	batch.Transcripts = append(batch.Transcripts, transcript)
}

func (b *builder) freeze() Batches {
	out := Batches{keys: append([]string(nil), b.keys...), byKey: make(map[string]Batch, len(b.byKey))}
	for key, batch := range b.byKey {
		out.byKey[key] = Batch{Student: batch.Student, Transcripts: append([]string(nil), batch.Transcripts...)}
	}
	return out
}

// NewBatches builds Batches from already grouped deliveries, merging batches
// that share a student key.
func NewBatches(batches ...Batch) Batches {
	b := newBuilder()
	for _, batch := range batches {
		for _, transcript := range batch.Transcripts {
			b.add(batch.Student, transcript)
		}
	}
	return b.freeze()
}
