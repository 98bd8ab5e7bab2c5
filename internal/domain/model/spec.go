// spec.go — структурное описание сгенерированного endpoint.
// Форму задаёт AI на стороне backend: любое поле может отсутствовать,
// клиент обязан подставлять значения по умолчанию, а не предполагать схему.
package model

// EndpointSpec — описание одного сгенерированного HTTP endpoint.
// Все поля опциональны; доступ только через методы с default-ами.
type EndpointSpec struct {
	// ServiceName — имя сервиса по версии AI.
	ServiceName *string `json:"service_name,omitempty"`
	// Path — путь endpoint (например, /contact).
	Path *string `json:"path,omitempty"`
	// Method — HTTP-метод endpoint.
	Method *string `json:"method,omitempty"`
	// Fields — список полей тела запроса.
	Fields []SpecField `json:"fields,omitempty"`
}

// SpecField — одно поле тела запроса сгенерированного endpoint.
type SpecField struct {
	// Name — имя поля.
	Name *string `json:"name,omitempty"`
	// Type — тип поля по версии AI (string, number, ...).
	Type *string `json:"type,omitempty"`
	// Required — обязательность поля.
	Required *bool `json:"required,omitempty"`
}

// EndpointPath возвращает путь endpoint или "—", если AI его не указал.
func (s *EndpointSpec) EndpointPath() string {
	if s == nil || s.Path == nil || *s.Path == "" {
		return "—"
	}
	return *s.Path
}

// EndpointMethod возвращает HTTP-метод endpoint или "—".
func (s *EndpointSpec) EndpointMethod() string {
	if s == nil || s.Method == nil || *s.Method == "" {
		return "—"
	}
	return *s.Method
}

// FieldNames возвращает имена полей, пропуская безымянные.
func (s *EndpointSpec) FieldNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name != nil && *f.Name != "" {
			names = append(names, *f.Name)
		}
	}
	return names
}

// IsMalformed возвращает true, если spec отсутствует или не содержит
// ни пути, ни метода. Такая запись отображается в degraded-режиме
// с пояснением, без ошибки.
func (s *EndpointSpec) IsMalformed() bool {
	if s == nil {
		return true
	}
	hasPath := s.Path != nil && *s.Path != ""
	hasMethod := s.Method != nil && *s.Method != ""
	return !hasPath && !hasMethod
}

// Clone возвращает глубокую копию spec (nil-safe).
func (s *EndpointSpec) Clone() *EndpointSpec {
	if s == nil {
		return nil
	}
	cp := &EndpointSpec{}
	if s.ServiceName != nil {
		v := *s.ServiceName
		cp.ServiceName = &v
	}
	if s.Path != nil {
		v := *s.Path
		cp.Path = &v
	}
	if s.Method != nil {
		v := *s.Method
		cp.Method = &v
	}
	if len(s.Fields) > 0 {
		cp.Fields = make([]SpecField, len(s.Fields))
		for i, f := range s.Fields {
			nf := SpecField{}
			if f.Name != nil {
				v := *f.Name
				nf.Name = &v
			}
			if f.Type != nil {
				v := *f.Type
				nf.Type = &v
			}
			if f.Required != nil {
				v := *f.Required
				nf.Required = &v
			}
			cp.Fields[i] = nf
		}
	}
	return cp
}
