// Package flagx contains small helpers for command-line flag handling shared
// by configuration loaders.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns only the arguments whose flag names appear in
// allowedFlags, keeping values that follow them. This lets a config loader
// parse its own subset of os.Args without tripping over flags owned by other
// components.
//
// Both "-f value" and "-f=value" forms are recognized.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			// Keep the value argument if one follows.
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// JsonConfigFile returns the JSON config file path passed via -c/-config,
// or an empty string if the flag is absent.
func JsonConfigFile() string {
	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("jsonconfig", flag.ContinueOnError)
	short := fs.String("c", "", "path to JSON config file")
	long := fs.String("config", "", "path to JSON config file")
	if err := fs.Parse(args); err != nil {
		return ""
	}

	if *short != "" {
		return *short
	}
	return *long
}
