//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified
var Default = Build

// Build compiles the project binaries into the bin/ directory.
func Build() error {
	fmt.Println("Building...")
	return sh.Run("go", "build", "-o", "./bin", "./...")
}

// Install copies the mkimport binary to /usr/local/bin.
func Install() error {
	mg.Deps(Build)
	fmt.Println("Installing...")
	return sh.Run("cp", "bin/mkimport", "/usr/local/bin/mkimport")
}

// Test runs all tests in the project with verbose output.
func Test() error {
	fmt.Println("Running Tests...")
	return sh.Run("go", "test", "-v", "./...")
}

// TestEngine runs the import driver tests against the flat ODS fixtures.
func TestEngine() error {
	fmt.Println("Running Engine Tests...")
	return sh.Run("go", "test", "-test.fullpath=true", "-timeout", "60s", "-run", "^TestImporter_", "github.com/darianmavgo/mkimport/converters")
}

// Race runs all tests with the race detector.
func Race() error {
	fmt.Println("Running Tests with -race...")
	return sh.RunV("go", "test", "-race", "./...")
}

// Sample converts the fixture given in $MKIMPORT_SAMPLE to SQL on stdout.
func Sample() error {
	mg.Deps(Build)
	path := os.Getenv("MKIMPORT_SAMPLE")
	if path == "" {
		return fmt.Errorf("MKIMPORT_SAMPLE is not set")
	}
	return sh.RunV("bin/mkimport", "--col-names", path)
}

// Clean removes the bin directory and test outputs.
func Clean() error {
	fmt.Println("Cleaning...")
	if err := os.RemoveAll("bin"); err != nil {
		return err
	}
	if err := os.RemoveAll("test_output"); err != nil {
		return err
	}
	return nil
}

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println("Running go mod tidy...")
	return sh.Run("go", "mod", "tidy")
}

// Check runs formatting and linting checks (fmt, vet).
func Check() error {
	mg.Deps(Fmt, Vet)
	return nil
}

// Fmt runs go fmt ./...
func Fmt() error {
	fmt.Println("Running go fmt...")
	return sh.Run("go", "fmt", "./...")
}

// Vet runs go vet ./...
func Vet() error {
	fmt.Println("Running go vet...")
	return sh.Run("go", "vet", "./...")
}
