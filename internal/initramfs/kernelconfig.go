package initramfs

import (
	"fmt"
	"os"
)

// AppendInitramfsSource rewires a kernel configuration to embed the given
// cpio archive as its initramfs. The options are appended, which is how
// kconfig expects overrides (last value wins).
func AppendInitramfsSource(cfgPath, cpioPath string) error {
	f, err := os.OpenFile(cfgPath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open kernel config %s: %w", cfgPath, err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "CONFIG_BLK_DEV_INITRD=y\nCONFIG_INITRAMFS_SOURCE=%q\n", cpioPath)
	if err != nil {
		return fmt.Errorf("cannot append initramfs options to %s: %w", cfgPath, err)
	}
	return nil
}
