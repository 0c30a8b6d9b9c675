//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Compiles the shaders and runs the player on the given mp4. An empty path
// lets debug builds fall back to the bundled sample.
func (Run) Player(path string) error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run player...")
	args := []string{"run", "."}
	if path != "" {
		args = append(args, path)
	}
	_, err := executeCmd("go", withArgs(args...), withStream())
	return err
}

// Runs the unit tests.
func Test() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}
