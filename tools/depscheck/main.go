// Command depscheck enforces the package layering: the simulation never
// reaches into transport, and the wire codec stays dependency free.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "arena/server"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

type rule struct {
	// from matches importing packages by prefix.
	from string
	// forbidden lists import prefixes the matching packages must not use.
	forbidden []string
}

var rules = []rule{
	{
		from: modulePath + "/internal/state",
		forbidden: []string{
			modulePath + "/internal/sim",
			modulePath + "/internal/net",
			modulePath + "/internal/broadcast",
			modulePath + "/internal/delta",
		},
	},
	{
		from: modulePath + "/internal/sim",
		forbidden: []string{
			modulePath + "/internal/net/ws",
			modulePath + "/internal/net/intake",
			modulePath + "/internal/broadcast",
			modulePath + "/internal/delta",
			"github.com/gorilla/websocket",
		},
	},
	{
		from:      modulePath + "/internal/net/proto",
		forbidden: []string{modulePath + "/"},
	},
	{
		from: modulePath + "/internal/delta",
		forbidden: []string{
			modulePath + "/internal/broadcast",
			modulePath + "/internal/net/ws",
		},
	},
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	packages, err := decodePackages(bytes.NewReader(output))
	if err != nil {
		fmt.Fprintf(os.Stderr, "depscheck: %v\n", err)
		os.Exit(1)
	}

	violations := check(packages, rules)
	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}

func decodePackages(r io.Reader) ([]packageInfo, error) {
	decoder := json.NewDecoder(r)
	var out []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("failed to decode package info: %w", err)
		}
		out = append(out, pkg)
	}
}

func check(packages []packageInfo, rules []rule) []string {
	var violations []string
	for _, pkg := range packages {
		for _, r := range rules {
			if !matches(pkg.ImportPath, r.from) {
				continue
			}
			for _, imp := range pkg.Imports {
				for _, forbidden := range r.forbidden {
					if strings.HasPrefix(imp, forbidden) {
						violations = append(violations, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
					}
				}
			}
		}
	}
	sort.Strings(violations)
	return violations
}

// matches reports whether path is prefix itself or one of its subpackages.
func matches(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
