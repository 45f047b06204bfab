package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitsuite/packages/core/config"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hitsuite project",
	Long: `Initialize a new hitsuite project in the current directory.

This creates:
  - .hitsuite.yaml       - Configuration file
  - example.suite.yaml   - Example suite file

Examples:
  hitsuite init
  hitsuite init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleSuite = `description: example
variables:
  greeting: hello
before_all:
  - echo "starting"
specs:
  - it: greets
    run: echo "{{greeting}} world"
    expect:
      - subject: stdout
        operator: contains
        value: "hello world"
      - subject: exit_code
        operator: equals
        value: 0
groups:
  - describe: json output
    tags: [smoke]
    specs:
      - it: prints an object
        run: echo '{"name":"hitsuite","tags":["a","b"]}'
        expect:
          - subject: json.name
            operator: equals
            value: hitsuite
          - subject: json.tags
            operator: length
            value: 2
  - describe: squares
    each: [1, 2, 3]
    specs:
      - it: multiplies
        run: echo $(( {{row}} * {{row}} ))
        expect:
          - subject: exit_code
            operator: equals
            value: 0
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	return initProject(cmd, cwd)
}

func initProject(cmd *cobra.Command, dir string) error {
	configFile := filepath.Join(dir, ".hitsuite.yaml")
	exampleFile := filepath.Join(dir, "example.suite.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return &exitError{code: ExitUsageError, err: fmt.Errorf("file already exists: %s (use --force to overwrite)", f)}
			}
		}
	}

	cfg := &config.Config{
		Order:      config.OrderRandom,
		Timeout:    30000,
		Retries:    0,
		RetryDelay: 1000,
		Bail:       config.BoolPtr(false),
		Reporters:  []string{"junit"},
		OutputDir:  "reports",
		Log:        &config.LogConfig{Level: "warn", Format: "console"},
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleSuite), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitsuite project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitsuite run example.suite.yaml' to execute the example specs.\n")

	return nil
}
