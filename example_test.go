package fat32_test

import (
	"context"
	"fmt"

	"github.com/soypat/fat32vol"
)

// ExampleFormat_basicUsage formats a fresh image, mounts it, writes a file,
// unmounts, remounts and reads it back — this package's end-to-end path.
func ExampleFormat_basicUsage() {
	dev := fat32.NewMemDevice()
	const sectorCount = 66600 // smallest MBR + 1-sector-per-cluster FAT32 image
	if err := fat32.Format(context.Background(), dev, sectorCount, fat32.FormatConfig{SectorsPerCluster: 1}); err != nil {
		fmt.Println("format failed:", err)
		return
	}

	reg := &fat32.Registry{}
	vol, err := reg.Mount(dev, "m")
	if err != nil {
		fmt.Println("mount failed:", err)
		return
	}

	f, err := vol.OpenFile("/a.txt", fat32.ModeWrite|fat32.ModeCreate)
	if err != nil {
		fmt.Println("open failed:", err)
		return
	}
	if _, err := f.Write([]byte("hello\n")); err != nil {
		fmt.Println("write failed:", err)
		return
	}
	if err := f.Close(); err != nil {
		fmt.Println("close failed:", err)
		return
	}
	if err := reg.Unmount(vol); err != nil {
		fmt.Println("unmount failed:", err)
		return
	}

	vol, err = reg.Mount(dev, "m")
	if err != nil {
		fmt.Println("remount failed:", err)
		return
	}
	info, err := vol.Stat("/a.txt")
	if err != nil {
		fmt.Println("stat failed:", err)
		return
	}

	rf, err := vol.OpenFile("/a.txt", fat32.ModeRead)
	if err != nil {
		fmt.Println("reopen failed:", err)
		return
	}
	defer rf.Close()
	buf := make([]byte, info.Size)
	if _, err := rf.Read(buf); err != nil {
		fmt.Println("read failed:", err)
		return
	}

	fmt.Printf("%d %q\n", info.Size, buf)
	// Output: 6 "hello\n"
}
