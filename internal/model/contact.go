package model

// ContactIDField is the field of a contact body carrying its uuid.
const ContactIDField = "id"

// Contact is the field mapping of a phonebook or personal contact. Stored
// contacts always carry their uuid under ContactIDField.
type Contact map[string]string

// ID returns the contact uuid.
func (c Contact) ID() string {
	return c[ContactIDField]
}

// Clone returns a copy of c.
func (c Contact) Clone() Contact {
	out := make(Contact, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// WithoutID returns a copy of c without its id field.
func (c Contact) WithoutID() Contact {
	out := c.Clone()
	delete(out, ContactIDField)
	return out
}

// FailedContact is a contact that could not be imported, with the reason.
type FailedContact struct {
	Contact Contact `json:"contact"`
	Reason  string  `json:"message"`
}
