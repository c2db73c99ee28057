// Command adapter-inspect prints the directory of an adapter file.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/headlands-org/go-qgemm/internal/adapter"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <file.qadp>\n", os.Args[0])
		os.Exit(1)
	}

	path := os.Args[1]
	info, err := adapter.ReadInfo(path)
	if err != nil {
		log.Fatalf("Failed to read adapter file: %v", err)
	}

	fmt.Printf("Adapter File: %s\n", path)
	fmt.Printf("Version: %d\n", info.Version)
	fmt.Printf("Parameters: %d\n\n", len(info.Params))

	for _, p := range info.Params {
		extra := ""
		if p.DType == adapter.DTypeQ4 {
			extra = fmt.Sprintf(" blklen=%d", p.BlkLen)
			if p.HasZeroPoints() {
				extra += " +zeropoints"
			}
		}
		fmt.Printf("  %-40s %-4s shape=%v size=%d%s\n", p.Name, p.DType, p.Shape, p.Size, extra)
	}
}
