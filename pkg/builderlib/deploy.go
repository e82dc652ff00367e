// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"fmt"

	"github.com/papampi/braiins-os/buildconfig"
	"github.com/papampi/braiins-os/internal/logger"
	"github.com/papampi/braiins-os/internal/sshclient"
)

const defaultUsername = "root"

// applyDeployPatch applies one resolver patch to the deployment flags.
func applyDeployPatch(deploy *buildconfig.DeployConfig, patch ConfigPatch) error {
	value := patch.Value == "yes"
	switch patch.Name {
	case "write_miner_cfg":
		deploy.WriteMinerCfg = value
	case "reset_uboot_env":
		deploy.ResetUbootEnv = value
	case "reboot":
		deploy.Reboot = value
	default:
		return fmt.Errorf("unknown deployment flag (%s)", patch.Name)
	}
	return nil
}

// Deploy resolves the targets and runs the whole deployment plan: remote
// device first, then local mirrors, then the package feed.
func (b *Builder) Deploy(targets []string) error {
	plan, patches, err := b.ResolvePlan(targets)
	if err != nil {
		return err
	}

	builder := b
	if len(patches) > 0 {
		patched := *b.Config
		for _, patch := range patches {
			logger.Log.Debugf("Setting deployment flag '%s' to '%s'", patch.Name, patch.Value)
			err = applyDeployPatch(&patched.Deploy, patch)
			if err != nil {
				return err
			}
		}
		builder = &Builder{Config: &patched, workingDir: b.workingDir}
	}

	err = plan.Validate()
	if err != nil {
		return err
	}

	if plan.HasRemote() {
		err = builder.deployRemoteOverSSH(plan)
		if err != nil {
			return err
		}
	}
	if plan.HasLocal() {
		err = builder.deployLocal(plan)
		if err != nil {
			return err
		}
	}
	if plan.Feeds != nil {
		err = builder.deployFeeds(plan.Feeds)
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) deployRemoteOverSSH(plan *Plan) error {
	hostname := b.Config.Hostname()
	username := b.Config.Deploy.SSH.Username
	if username == "" {
		username = defaultUsername
	}

	logger.Log.Infof("Connecting to '%s@%s'...", username, hostname)
	client, err := sshclient.Connect(hostname, username, b.Config.Deploy.SSH.Password)
	if err != nil {
		return err
	}
	defer client.Close()

	return b.deployRemote(NewSSHTransport(client), plan)
}
