package engine

import "strings"

// Notification types.
const (
	NotifyDeploy = "deploy"
	NotifySchema = "schema"
	NotifyOption = "option"
)

// Deploy notification values.
const (
	DeployStart   = "start"
	DeploySuccess = "success"
	DeployFailure = "failure"
)

// SchemaValue formats a schema notification value.
func SchemaValue(id, name string) string {
	return id + "/" + name
}

// ParseSchemaValue splits a schema notification value.
func ParseSchemaValue(v string) (id, name string) {
	id, name, _ = strings.Cut(v, "/")
	return id, name
}

// OptionValue formats an option notification value: the name when set,
// "!name" when cleared.
func OptionValue(name string, value bool) string {
	if value {
		return name
	}
	return "!" + name
}

// ParseOptionValue reverses OptionValue.
func ParseOptionValue(v string) (name string, value bool) {
	if strings.HasPrefix(v, "!") {
		return v[1:], false
	}
	return v, true
}
