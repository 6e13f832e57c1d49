package main

import "fmt"

var (
	version  string = "0.1.0"
	gitSHA1  string = "unknown"
	gitDirty string = "unknown"
)

// Version is the release plus git state when the build stamped it in
// with -ldflags "-X main.gitSHA1=...".
func Version() string {
	v := version
	if gitSHA1 != "unknown" && gitSHA1 != "" {
		v = fmt.Sprintf("%s (git:%s", v, gitSHA1)
		if gitDirty != "" && gitDirty != "0" && gitDirty != "unknown" {
			v += "-dirty"
		}
		v += ")"
	}
	return v
}
