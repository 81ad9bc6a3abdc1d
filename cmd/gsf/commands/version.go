package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-sharp-flow/pkg/rules"
)

var (
	version   = "dev"
	buildTime = ""
)

// SetVersion records build information for the version command.
func SetVersion(v, built string) {
	version = v
	buildTime = built
	RootCmd.Version = v
	RootCmd.SetVersionTemplate("gsf version {{.Version}}\n")
}

var ruleTitles = map[string]string{
	rules.NullDereferenceID:          "Null pointers should not be dereferenced",
	rules.EmptyNullableValueAccessID: "Empty nullable value should not be accessed",
	rules.ConstantConditionID:        "Conditions should not always evaluate to the same value",
	rules.EmptyCollectionAccessID:    "Collections should not be read while empty",
}

func ruleTitle(id string) string {
	if t, ok := ruleTitles[id]; ok {
		return t
	}
	return ""
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "gsf version %s\n", version)
		if buildTime != "" {
			fmt.Fprintf(out, "built: %s\n", buildTime)
		}
		fmt.Fprintf(out, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the available rules",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, id := range rules.NewRegistry().IDs() {
			fmt.Fprintf(out, "%s  %s\n", ruleStyle.Sprint(id), ruleTitle(id))
		}
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(rulesCmd)
}
