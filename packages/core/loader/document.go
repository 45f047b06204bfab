package loader

// Document is the root of a suite file.
type Document struct {
	Description string         `yaml:"description"`
	Variables   map[string]any `yaml:"variables"`
	EnvFile     string         `yaml:"env_file"`
	// Timeout in milliseconds, applied to every spec without its own.
	Timeout int         `yaml:"timeout"`
	Tags    []string    `yaml:"tags"`
	WaitFor *WaitForDoc `yaml:"wait_for"`

	Hooks `yaml:",inline"`

	Specs  []SpecDoc  `yaml:"specs"`
	Groups []GroupDoc `yaml:"groups"`
}

// Hooks are the shell commands attached to a group.
type Hooks struct {
	BeforeAll  []string `yaml:"before_all"`
	AfterAll   []string `yaml:"after_all"`
	BeforeEach []string `yaml:"before_each"`
	AfterEach  []string `yaml:"after_each"`
}

// GroupDoc declares a child group, or a table of groups when Each is set.
type GroupDoc struct {
	Describe  string         `yaml:"describe"`
	Each      []any          `yaml:"each"`
	Skip      bool           `yaml:"skip"`
	Only      bool           `yaml:"only"`
	Variables map[string]any `yaml:"variables"`
	Timeout   int            `yaml:"timeout"`
	Tags      []string       `yaml:"tags"`
	WaitFor   *WaitForDoc    `yaml:"wait_for"`

	Hooks `yaml:",inline"`

	Specs  []SpecDoc  `yaml:"specs"`
	Groups []GroupDoc `yaml:"groups"`
}

// SpecDoc declares a spec. A spec without Run is a stub.
type SpecDoc struct {
	It      string   `yaml:"it"`
	Run     string   `yaml:"run"`
	Skip    bool     `yaml:"skip"`
	Only    bool     `yaml:"only"`
	Timeout int      `yaml:"timeout"`
	Tags    []string `yaml:"tags"`
	Retry   int      `yaml:"retry"`
	// RetryDelay in milliseconds.
	RetryDelay int `yaml:"retry_delay"`
	// RetryOn restricts retries to these exit codes.
	RetryOn []int       `yaml:"retry_on"`
	Expect  []ExpectDoc `yaml:"expect"`
}

// ExpectDoc is one expectation on the command output.
type ExpectDoc struct {
	Subject  string `yaml:"subject"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
}

// CountSpecs returns the number of specs declared in the document, counting
// every row of a table group.
func (d *Document) CountSpecs() int {
	return len(d.Specs) + countGroups(d.Groups)
}

func countGroups(groups []GroupDoc) int {
	n := 0
	for _, g := range groups {
		body := len(g.Specs) + countGroups(g.Groups)
		if g.Each != nil {
			body *= len(g.Each)
		}
		n += body
	}
	return n
}
