// Copyright (c) Braiins Systems s.r.o.
// Licensed under the GNU General Public License v3 or later.

package builderlib

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"

	gzip "github.com/klauspost/pgzip"

	"github.com/papampi/braiins-os/internal/bootenv"
	"github.com/papampi/braiins-os/internal/logger"
	"github.com/papampi/braiins-os/internal/tarutils"
)

const (
	sdBootDevice = "/dev/mmcblk0p1"
	sdDataDevice = "/dev/mmcblk0p2"
	sdMountPoint = "/mnt"

	sysupgradeKernelMember = "sysupgrade-miner-nand/kernel"
	sysupgradeRootMember   = "sysupgrade-miner-nand/root"
)

type uploadEntry struct {
	local  string
	remote string
}

func (i *SdImage) uploadSet() []uploadEntry {
	return []uploadEntry{
		{i.Boot, "boot.bin"},
		{i.Uboot, "u-boot.img"},
		{i.Bitstream, "system.bit"},
		{i.Kernel, "fit.itb"},
	}
}

func (i *RecoveryImage) uploadSet() []uploadEntry {
	return []uploadEntry{
		{i.Boot, "boot.bin"},
		{i.Uboot, "u-boot.img"},
		{i.Bitstream, "system.bit"},
		{i.Kernel, "fit.itb"},
		{i.Factory, "factory.bin"},
	}
}

// mtdWrite streams a local image into a remote NAND partition through the
// mtd utility. The image can be written at an offset, gzip compressed in
// transit, and with block erase suppressed for partitions that were erased
// beforehand.
func (b *Builder) mtdWrite(transport Transport, imagePath string, device string, offset int, compress bool, erase bool) error {
	command := []string{"mtd"}
	if !erase {
		command = append(command, "-n")
	}
	if offset != 0 {
		command = append(command, "-p", strconv.Itoa(offset))
	}
	command = append(command, "write", "-", device)

	imageFile, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open image (%s):\n%w", imagePath, err)
	}
	defer imageFile.Close()

	remote, err := transport.Pipe(command...)
	if err != nil {
		return fmt.Errorf("failed to start mtd write on (%s):\n%w", device, err)
	}

	if compress {
		compressor := gzip.NewWriter(remote)
		_, err = io.Copy(compressor, imageFile)
		if err == nil {
			err = compressor.Close()
		}
	} else {
		_, err = io.Copy(remote, imageFile)
	}
	closeErr := remote.Close()
	if err != nil {
		return fmt.Errorf("failed to stream image (%s) to (%s):\n%w", imagePath, device, err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to write image (%s) to (%s):\n%w", imagePath, device, closeErr)
	}
	return nil
}

type nandBootImage interface {
	bootImages() []uploadEntry
}

func (i *RecoveryImage) bootImages() []uploadEntry {
	return []uploadEntry{{i.Boot, "boot"}, {i.Uboot, "uboot"}}
}

func (i *NandImage) bootImages() []uploadEntry {
	return []uploadEntry{{i.Boot, "boot"}, {i.Uboot, "uboot"}}
}

// writeNandUboot writes the SPL and U-Boot images to their NAND
// partitions.
func (b *Builder) writeNandUboot(transport Transport, image nandBootImage) error {
	for _, boot := range image.bootImages() {
		logger.Log.Infof("Writing '%s' to NAND partition '%s'...", filepath.Base(boot.local), boot.remote)
		err := b.mtdWrite(transport, boot.local, boot.remote, 0, false, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// withMounted runs work with a remote device mounted on /mnt. The device
// is unmounted even when the work fails.
func withMounted(transport Transport, device string, work func() error) error {
	_, _, err := transport.Run("mount", device, sdMountPoint)
	if err != nil {
		return fmt.Errorf("failed to mount (%s):\n%w", device, err)
	}

	workErr := work()
	_, _, umountErr := transport.Run("umount", sdMountPoint)
	if workErr != nil {
		return workErr
	}
	if umountErr != nil {
		return fmt.Errorf("failed to unmount (%s):\n%w", device, umountErr)
	}
	return nil
}

// deploySD writes the firmware files to the first SD card partition. The
// card stays mounted only for the duration of the transfer.
func (b *Builder) deploySD(transport Transport, uploads []uploadEntry) error {
	return withMounted(transport, sdBootDevice, func() error {
		return copyToSink(NewRemoteSink(transport, sdMountPoint), uploads)
	})
}

// configSD writes the uEnv.txt boot overrides to the SD card and
// optionally resets the extroot data partition.
func (b *Builder) configSD(transport Transport) error {
	err := withMounted(transport, sdBootDevice, func() error {
		logger.Log.Infof("Creating '%s'...", uEnvFileName)
		return NewRemoteSink(transport, sdMountPoint).
			PutBytes(uEnvContent(b.Config), uEnvFileName, false)
	})
	if err != nil {
		return err
	}

	resetExtroot := b.Config.Deploy.ResetExtroot
	removeUUID := b.Config.Deploy.RemoveExtrootUUID
	if !resetExtroot && !removeUUID {
		return nil
	}

	return withMounted(transport, sdDataDevice, func() error {
		if resetExtroot {
			logger.Log.Info("Removing all data from extroot...")
			_, _, runErr := transport.Run("rm", "-fr", sdMountPoint+"/*")
			if runErr != nil {
				return fmt.Errorf("failed to reset extroot:\n%w", runErr)
			}
			return nil
		}

		uuidPath := path.Join(sdMountPoint, "etc", ".extroot-uuid")
		exists, existsErr := transport.RemoteExists(uuidPath)
		if existsErr != nil {
			return fmt.Errorf("failed to check extroot UUID:\n%w", existsErr)
		}
		if exists {
			logger.Log.Info("Removing extroot UUID...")
			removeErr := transport.RemoveRemote(uuidPath)
			if removeErr != nil {
				return fmt.Errorf("failed to remove extroot UUID:\n%w", removeErr)
			}
		}
		return nil
	})
}

// deployNandRecovery writes the recovery image to the recovery NAND
// partition. The remote system must be booted from SD card or from the
// recovery partition.
func (b *Builder) deployNandRecovery(transport Transport, image *RecoveryImage) error {
	err := b.writeNandUboot(transport, image)
	if err != nil {
		return err
	}

	const mtdName = "recovery"

	// erase device before formating
	_, _, err = transport.Run("mtd", "erase", mtdName)
	if err != nil {
		return fmt.Errorf("failed to erase NAND partition '%s':\n%w", mtdName, err)
	}

	writes := []struct {
		local    string
		offset   int
		compress bool
		erase    bool
	}{
		{image.Kernel, 0, false, true},
		{image.Factory, recoveryFactoryOffset, true, false},
		{image.Bitstream, recoveryBitstreamOffset, true, false},
	}
	for _, write := range writes {
		logger.Log.Infof("Writing '%s' to NAND partition '%s'...", filepath.Base(write.local), mtdName)
		err = b.mtdWrite(transport, write.local, mtdName, write.offset, write.compress, write.erase)
		if err != nil {
			return err
		}
	}
	return nil
}

// deployNand writes the firmware image to one or both firmware slots. The
// remote system must be booted from SD card or from the recovery
// partition.
func (b *Builder) deployNand(transport Transport, image *NandImage, firmware1 bool, firmware2 bool) error {
	err := b.writeNandUboot(transport, image)
	if err != nil {
		return err
	}

	indexes := []int{}
	if firmware1 {
		indexes = append(indexes, 1)
	}
	if firmware2 {
		indexes = append(indexes, 2)
	}

	if b.Config.Deploy.WriteBitstream {
		for _, index := range indexes {
			mtdName := bitstreamMTDName(index)
			logger.Log.Infof("Writing bitstream for platform '%s' to NAND partition '%s'...",
				b.Config.Miner.Platform, mtdName)
			err = b.mtdWrite(transport, image.Bitstream, mtdName, 0, true, true)
			if err != nil {
				return err
			}
		}
	}

	for _, index := range indexes {
		mtd, err := firmwareMTD(index)
		if err != nil {
			return err
		}
		if b.Config.Deploy.FactoryImage {
			err = b.formatFirmware(transport, image, index, mtd)
		} else {
			err = b.upgradeFirmware(transport, image, index, mtd)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// formatFirmware overwrites a firmware slot with the factory image. All
// overlay data stored in the UBIFS volume is lost.
func (b *Builder) formatFirmware(transport Transport, image *NandImage, index int, mtd string) error {
	logger.Log.Infof("Formating 'firmware%d' (%s) with 'factory.bin'...", index, mtd)

	// erase device before formating
	_, _, err := transport.Run("mtd", "erase", mtd)
	if err != nil {
		return fmt.Errorf("failed to erase firmware partition (%s):\n%w", mtd, err)
	}

	imageSize, err := fileSize(image.Factory)
	if err != nil {
		return err
	}
	imageFile, err := os.Open(image.Factory)
	if err != nil {
		return fmt.Errorf("failed to open factory image (%s):\n%w", image.Factory, err)
	}
	defer imageFile.Close()

	remote, err := transport.Pipe("ubiformat", mtd, "-f", "-", "-S", strconv.FormatInt(imageSize, 10))
	if err != nil {
		return fmt.Errorf("failed to start ubiformat on (%s):\n%w", mtd, err)
	}
	_, err = io.Copy(remote, imageFile)
	closeErr := remote.Close()
	if err != nil {
		return fmt.Errorf("failed to stream factory image to (%s):\n%w", mtd, err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to format firmware partition (%s):\n%w", mtd, closeErr)
	}
	return nil
}

// upgradeFirmware updates the kernel and root volumes of a firmware slot
// from the sysupgrade tarball. Overlay data stored in the UBIFS volume is
// preserved.
func (b *Builder) upgradeFirmware(transport Transport, image *NandImage, index int, mtd string) error {
	logger.Log.Infof("Updating 'firmware%d' (%s) volumes with 'sysupgrade.tar'...", index, mtd)

	_, _, err := transport.Run("ubiattach", "-p", mtd)
	if err != nil {
		return fmt.Errorf("failed to attach UBI device (%s):\n%w", mtd, err)
	}

	volumes := []struct {
		name   string
		member string
		device string
	}{
		{"kernel", sysupgradeKernelMember, "/dev/ubi0_0"},
		{"rootfs", sysupgradeRootMember, "/dev/ubi0_1"},
	}
	for _, volume := range volumes {
		logger.Log.Infof("Updating volume '%s' (%s) with '%s'...", volume.name, volume.device, volume.member)
		err = b.updateVolume(transport, image.Sysupgrade, volume.member, volume.device)
		if err != nil {
			return err
		}
	}

	_, _, err = transport.Run("ubidetach", "-p", mtd)
	if err != nil {
		return fmt.Errorf("failed to detach UBI device (%s):\n%w", mtd, err)
	}
	return nil
}

func (b *Builder) updateVolume(transport Transport, sysupgradePath string, memberName string, device string) error {
	member, err := tarutils.OpenMember(sysupgradePath, memberName)
	if err != nil {
		return fmt.Errorf("failed to open sysupgrade member (%s):\n%w", memberName, err)
	}
	defer member.Close()

	remote, err := transport.Pipe("ubiupdatevol", device, "-", "-s", strconv.FormatInt(member.Size, 10))
	if err != nil {
		return fmt.Errorf("failed to start volume update on (%s):\n%w", device, err)
	}
	_, err = io.Copy(remote, member.Reader)
	closeErr := remote.Close()
	if err != nil {
		return fmt.Errorf("failed to stream volume image (%s):\n%w", memberName, err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to update volume (%s):\n%w", device, closeErr)
	}
	return nil
}

// configNand applies the NAND configuration switches: writing the miner
// configuration partition, adjusting the U-Boot environment, and
// resetting the environment or the overlay volume.
func (b *Builder) configNand(transport Transport) error {
	deploy := &b.Config.Deploy

	if deploy.WriteMinerCfg {
		input, err := minerCfgInput(b.Config)
		if err != nil {
			return err
		}
		mkenvimage, err := b.utility("mkenvimage")
		if err != nil {
			return err
		}
		blob, err := bootenv.MakeImage(mkenvimage, input, minerCfgSize)
		if err != nil {
			return err
		}

		logger.Log.Info("Writing miner configuration to NAND partition 'miner_cfg'...")
		remote, err := transport.Pipe("mtd", "write", "-", "miner_cfg")
		if err != nil {
			return fmt.Errorf("failed to start miner_cfg write:\n%w", err)
		}
		_, err = remote.Write(blob)
		closeErr := remote.Close()
		if err != nil {
			return fmt.Errorf("failed to stream miner configuration:\n%w", err)
		}
		if closeErr != nil {
			return fmt.Errorf("failed to write miner configuration:\n%w", closeErr)
		}
	}

	if deploy.SetMinerEnv && !deploy.ResetUbootEnv {
		logger.Log.Info("Writing miner configuration to U-Boot env in NAND...")
		settings := []struct {
			name  string
			value string
		}{
			{minerCfgMAC, b.Config.Miner.MAC},
			{minerCfgHWID, b.Config.Miner.HWID},
			{"firmware", strconv.Itoa(b.Config.Miner.Firmware)},
		}
		for _, setting := range settings {
			_, _, err := transport.Run("fw_setenv", setting.name, setting.value)
			if err != nil {
				return fmt.Errorf("failed to set U-Boot env variable (%s):\n%w", setting.name, err)
			}
		}
	}

	ubiAttach := deploy.ResetOverlay
	mtd, err := firmwareMTD(b.Config.Miner.Firmware)
	if err != nil {
		return err
	}

	if ubiAttach {
		_, _, err := transport.Run("ubiattach", "-p", mtd)
		if err != nil {
			return fmt.Errorf("failed to attach UBI device (%s):\n%w", mtd, err)
		}
	}

	if deploy.ResetUbootEnv {
		logger.Log.Info("Erasing NAND partition 'uboot_env'...")
		_, _, err := transport.Run("mtd", "erase", "uboot_env")
		if err != nil {
			return fmt.Errorf("failed to erase U-Boot env partition:\n%w", err)
		}
	}

	// truncate overlay for current firmware
	if deploy.ResetOverlay {
		logger.Log.Info("Truncating UBI volume 'rootfs_data'...")
		_, _, err := transport.Run("ubiupdatevol", "/dev/ubi0_2", "-t")
		if err != nil {
			return fmt.Errorf("failed to truncate overlay volume:\n%w", err)
		}
	}

	if ubiAttach {
		_, _, err := transport.Run("ubidetach", "-p", mtd)
		if err != nil {
			return fmt.Errorf("failed to detach UBI device (%s):\n%w", mtd, err)
		}
	}
	return nil
}

// deployRemote runs every remote part of the plan over a single
// connection and reboots the device last when configured.
func (b *Builder) deployRemote(transport Transport, plan *Plan) error {
	if plan.RemoteSD != nil {
		err := b.deploySD(transport, plan.RemoteSD.uploadSet())
		if err != nil {
			return err
		}
	}
	if plan.RemoteSDRecovery != nil {
		err := b.deploySD(transport, plan.RemoteSDRecovery.uploadSet())
		if err != nil {
			return err
		}
	}
	if plan.SDConfig {
		err := b.configSD(transport)
		if err != nil {
			return err
		}
	}
	if plan.RemoteNandRecovery != nil {
		err := b.deployNandRecovery(transport, plan.RemoteNandRecovery)
		if err != nil {
			return err
		}
	}
	if plan.RemoteNand != nil {
		err := b.deployNand(transport, plan.RemoteNand, plan.NandFirmware1, plan.NandFirmware2)
		if err != nil {
			return err
		}
	}
	if plan.NandConfig {
		err := b.configNand(transport)
		if err != nil {
			return err
		}
	}

	if b.Config.Deploy.Reboot {
		logger.Log.Info("Rebooting device...")
		_, _, err := transport.Run("reboot")
		if err != nil {
			return fmt.Errorf("failed to reboot device:\n%w", err)
		}
	}
	return nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat (%s):\n%w", path, err)
	}
	return info.Size(), nil
}
