package constants

const (
	TemplateRunScript = "run-script"
)
