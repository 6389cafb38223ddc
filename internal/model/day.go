package model

// Field names one of the four punches of a day. The string value is the
// persisted document field name.
type Field string

const (
	MorningEntry   Field = "morningEntry"
	MorningExit    Field = "morningExit"
	AfternoonEntry Field = "afternoonEntry"
	AfternoonExit  Field = "afternoonExit"
)

// Fields lists the punches in the order dependency propagation runs.
var Fields = []Field{MorningEntry, MorningExit, AfternoonEntry, AfternoonExit}

// ParseField returns the Field named s and whether it is known.
func ParseField(s string) (Field, bool) {
	for _, f := range Fields {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Label returns a human-readable name for the field.
func (f Field) Label() string {
	switch f {
	case MorningEntry:
		return "Morning entry"
	case MorningExit:
		return "Morning exit"
	case AfternoonEntry:
		return "Afternoon entry"
	case AfternoonExit:
		return "Afternoon exit"
	}
	return string(f)
}

// Day is the set of four punches recorded by one user on one calendar date.
// Each punch is either "" (unset) or an "HH:MM" string.
type Day struct {
	UserID         string `json:"userId"`
	Date           string `json:"date"`
	MorningEntry   string `json:"morningEntry"`
	MorningExit    string `json:"morningExit"`
	AfternoonEntry string `json:"afternoonEntry"`
	AfternoonExit  string `json:"afternoonExit"`
}

// Get returns the value of field f.
func (d Day) Get(f Field) string {
	switch f {
	case MorningEntry:
		return d.MorningEntry
	case MorningExit:
		return d.MorningExit
	case AfternoonEntry:
		return d.AfternoonEntry
	case AfternoonExit:
		return d.AfternoonExit
	}
	return ""
}

// Set assigns v to field f. Unknown fields are ignored.
func (d *Day) Set(f Field, v string) {
	switch f {
	case MorningEntry:
		d.MorningEntry = v
	case MorningExit:
		d.MorningExit = v
	case AfternoonEntry:
		d.AfternoonEntry = v
	case AfternoonExit:
		d.AfternoonExit = v
	}
}

// Merge copies every value present in vals onto the day.
func (d *Day) Merge(vals FieldValues) {
	for f, v := range vals {
		d.Set(f, v)
	}
}

// Empty reports whether no punch is recorded.
func (d Day) Empty() bool {
	for _, f := range Fields {
		if d.Get(f) != "" {
			return false
		}
	}
	return true
}

// FieldValues is a partial set of punches, as handed to a store upsert.
type FieldValues map[Field]string

// User identifies the account a day belongs to.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
