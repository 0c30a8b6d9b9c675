//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const shaderDir = "engine/assets/builtin/shaders"

type Build mg.Namespace

// Compiles the built-in GLSL shaders into the embedded SPIR-V files.
func (Build) Shaders() error {
	return buildShaders()
}

// Builds the player binary into bin/cozy.
func (Build) Player() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", filepath.Join("bin", "cozy"), "."), withStream())
	return err
}

// Builds the player without the debug defaults.
func (Build) Release() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-tags", "release", "-o", filepath.Join("bin", "cozy"), "."), withStream())
	return err
}

func buildShaders() error {
	sources, err := shaderSources(shaderDir)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv"), withStream()); err != nil {
			return fmt.Errorf("compile %s: %w", filepath.Base(src), err)
		}
	}
	return nil
}
