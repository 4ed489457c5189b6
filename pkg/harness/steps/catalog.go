package steps

// Catalog returns a registry holding every step understood by the harness:
// generic element steps first, then app specific and workflow steps.
func Catalog() *Registry {
	r := NewRegistry()
	registerGeneric(r)
	registerApp(r)
	registerWorkflow(r)
	return r
}
