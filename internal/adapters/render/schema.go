package render

// renderedMeta mirrors the fields kiln reads from one rendered recipe
// document.
type renderedMeta struct {
	Package struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"package"`
	Requirements struct {
		Build []string `yaml:"build"`
		Host  []string `yaml:"host"`
		Run   []string `yaml:"run"`
	} `yaml:"requirements"`
	Test struct {
		Requires []string `yaml:"requires"`
	} `yaml:"test"`
	Outputs []struct {
		Name string `yaml:"name"`
	} `yaml:"outputs"`
	Extra struct {
		Channels []string `yaml:"channels"`
	} `yaml:"extra"`
}
