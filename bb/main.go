// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

// Tool to build, deploy and provision miner firmware

package main

import (
	"log"

	"github.com/alecthomas/kong"

	"github.com/papampi/braiins-os/buildconfig"
	"github.com/papampi/braiins-os/internal/exekong"
	"github.com/papampi/braiins-os/internal/logger"
	"github.com/papampi/braiins-os/pkg/builderlib"
)

type BuildCmd struct {
	Targets []string `arg:"" optional:"" help:"Build target aliases from the configuration file."`
}

type DeployCmd struct {
	Targets []string `arg:"" optional:"" help:"Deployment targets; defaults to deploy.targets from the configuration file."`
}

type GenKeyCmd struct {
	Secret string `arg:"" help:"Path of the secret key output file."`
	Public string `arg:"" help:"Path of the public key output file."`
}

type BuilderCmd struct {
	Config   string `name:"config" short:"c" default:"configs/default.yml" help:"Path of the build configuration file."`
	Platform string `name:"platform" help:"Override the configured platform."`
	exekong.LogFlags

	Build  BuildCmd  `cmd:"" help:"Build the firmware for the current configuration."`
	Deploy DeployCmd `cmd:"" help:"Deploy firmware images to the device, local directories or package feeds."`
	GenKey GenKeyCmd `cmd:"" name:"genkey" help:"Generate a signing key pair for the build system."`
}

func main() {
	cli := &BuilderCmd{}

	ktx := kong.Parse(cli,
		exekong.KongVars,
		kong.HelpOptions{
			Compact:   true,
			FlagsLast: true,
		},
		kong.UsageOnError())

	logFlags := cli.LogFlags.AsLoggerFlags()
	logger.InitBestEffort(&logFlags)

	config, err := buildconfig.LoadWithPlatform(cli.Config, cli.Platform)
	if err != nil {
		log.Fatalf("invalid configuration:\n%v", err)
	}
	builder := builderlib.New(config)

	switch ktx.Command() {
	case "build", "build <targets>":
		err = builder.Build(cli.Build.Targets)
	case "deploy", "deploy <targets>":
		targets := cli.Deploy.Targets
		if len(targets) == 0 {
			targets = config.Deploy.Targets
		}
		err = builder.Deploy(targets)
	case "genkey <secret> <public>":
		err = builder.GenerateKey(cli.GenKey.Secret, cli.GenKey.Public)
	default:
		log.Fatalf("unknown command: %s", ktx.Command())
	}
	if err != nil {
		log.Fatalf("%s failed:\n%v", ktx.Command(), err)
	}
}
