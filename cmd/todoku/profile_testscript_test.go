package main

import (
	"testing"

	"github.com/Makepad-fr/todoku/internal/testsupport"
	"github.com/rogpeppe/go-internal/testscript"
)

func TestProfileScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/profile",
		Setup: func(env *testscript.Env) error {
			return testsupport.SetupScriptEnv(t, env)
		},
	})
}
