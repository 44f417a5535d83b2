package schema

import "fmt"

// MethodImplementation is one per-language entry of a Method (spec §3).
type MethodImplementation struct {
	Language  string
	Prototype string
	Body      string
}

// Method is purely descriptive: a name, a description, and a list of
// per-language implementations (spec §3 Method/MethodImplementation).
type Method struct {
	name            string
	description     string
	implementations []MethodImplementation

	owner *Class
}

// NewMethod constructs a Method.
func NewMethod(name, description string, impls []MethodImplementation) (*Method, error) {
	if err := validateMemberName(name, maxAttributeNameLen); err != nil {
		return nil, err
	}
	if len(description) > maxDescriptionLen {
		return nil, fmt.Errorf("schema: method %q description exceeds %d bytes", name, maxDescriptionLen)
	}
	return &Method{name: name, description: description, implementations: impls}, nil
}

func (m *Method) Name() string                             { return m.name }
func (m *Method) Description() string                      { return m.description }
func (m *Method) Implementations() []MethodImplementation   { return m.implementations }

func (m *Method) notify(kind ChangeKind) {
	if m.owner == nil {
		return
	}
	m.owner.lockFile()
	defer m.owner.unlockFile()
	m.owner.propagate(kind, m.name)
}

// SetDescription validates and assigns a new description, then notifies.
func (m *Method) SetDescription(desc string) error {
	if len(desc) > maxDescriptionLen {
		return fmt.Errorf("schema: method %q description exceeds %d bytes", m.name, maxDescriptionLen)
	}
	m.description = desc
	m.notify(ChangeMethodDescription)
	return nil
}

// SetImplementations replaces the per-language implementation list and
// notifies.
func (m *Method) SetImplementations(impls []MethodImplementation) {
	m.implementations = impls
	m.notify(ChangeMethodImplementation)
}
