package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

// EnvVarName returns the environment variable that corresponds to the given flag.
func EnvVarName(envVarPrefix, flagName string) string {
	return envVarPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// AnnotateEnvVars appends the name of the corresponding environment variable to each flag's usage.
func AnnotateEnvVars(flags *pflag.FlagSet, envVarPrefix string) {
	flags.VisitAll(func(f *pflag.Flag) {
		f.Usage = fmt.Sprintf("%s (%s)", f.Usage, EnvVarName(envVarPrefix, f.Name))
	})
}

// ApplyEnvVars sets every flag that was not specified on the command line
// from its environment variable, if present.
// Environment variables with the given prefix that don't correspond to a flag are rejected.
func ApplyEnvVars(flags *pflag.FlagSet, envVarPrefix string) error {
	supportedEnvVars := map[string]struct{}{}
	var err error

	flags.VisitAll(func(f *pflag.Flag) {
		envVarName := EnvVarName(envVarPrefix, f.Name)
		supportedEnvVars[envVarName] = struct{}{}

		if err != nil || f.Changed {
			return
		}

		if envVarValue := os.Getenv(envVarName); envVarValue != "" {
			if e := f.Value.Set(envVarValue); e != nil {
				err = fmt.Errorf("invalid environment variable %s value %q provided: %w", envVarName, envVarValue, e)
			}
		}
	})
	if err != nil {
		return err
	}

	for _, entry := range os.Environ() {
		if strings.HasPrefix(entry, envVarPrefix) {
			kv := strings.SplitN(entry, "=", 2)
			if _, ok := supportedEnvVars[kv[0]]; !ok {
				return fmt.Errorf("unsupported environment variable provided: %s", kv[0])
			}
		}
	}

	return nil
}

// ChangedFlags returns the textual values of all flags that were specified on the command line.
func ChangedFlags(flags *pflag.FlagSet) map[string]string {
	changed := map[string]string{}

	flags.Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	return changed
}

// ReapplyFlags sets the given flag values again, e.g. after the bound struct has been reloaded.
func ReapplyFlags(flags *pflag.FlagSet, values map[string]string) error {
	for name, value := range values {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}

		if err := f.Value.Set(value); err != nil {
			return fmt.Errorf("flag --%s: %w", name, err)
		}
	}

	return nil
}
