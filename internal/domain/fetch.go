package domain

// PartitionRange restricts a fetch to Field values in [Min, Max]. Either bound may be empty.
type PartitionRange struct {
	Field string `json:"field" yaml:"field"`
	Min   string `json:"min,omitempty" yaml:"min,omitempty"`
	Max   string `json:"max,omitempty" yaml:"max,omitempty"`
}

// FetchRequest asks a warehouse connector to materialize one table.
type FetchRequest struct {
	Table     TableDescriptor `json:"table"`
	Where     string          `json:"where,omitempty"`
	Partition *PartitionRange `json:"partition,omitempty"`
	// Limit caps the number of rows read. Zero means no cap.
	Limit int `json:"limit,omitempty"`
}
