package schema

// Record maps field keys to captured values.
type Record map[string]string

func (r Record) Set(key, value string) { r[key] = value }

func (r Record) Get(key string) (string, bool) {
	v, ok := r[key]
	return v, ok
}

func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Values returns one cell per field in schema order. Missing fields
// become NotProvided.
func (r Record) Values(s *Schema) []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		v, ok := r[f.Key]
		if !ok || v == "" {
			v = NotProvided
		}
		out[i] = v
	}
	return out
}

// Complete fills every missing schema field with NotProvided.
func (r Record) Complete(s *Schema) {
	for _, f := range s.Fields {
		if v, ok := r[f.Key]; !ok || v == "" {
			r[f.Key] = NotProvided
		}
	}
}

// IsSentinel reports whether v is a placeholder rather than user input.
func IsSentinel(v string) bool {
	return v == NotProvided || v == DownloadFailed
}
