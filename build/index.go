package build

import (
	"github.com/outofforest/build"
	"github.com/outofforest/buildgo"
)

// Commands is a definition of commands available in build system
var Commands = map[string]build.Command{
	"test":  {Fn: goTests, Description: "Runs unit tests with reduced block cache"},
	"smoke": {Fn: smokeTest, Description: "Runs unit tests and round-trips sample compound files of both versions"},
}

func init() {
	buildgo.AddCommands(Commands)
}
