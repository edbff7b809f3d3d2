// Dump tool for inspecting SGC container files.
package main

import (
	"fmt"
	"os"

	"github.com/robert-malhotra/go-sigfile/container"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: sigdump <file.sgc>")
		os.Exit(1)
	}

	filename := os.Args[1]
	f, err := container.Open(filename)
	if err != nil {
		fmt.Printf("ERROR: failed to open %s: %v\n", filename, err)
		os.Exit(1)
	}
	defer f.Close()

	fmt.Printf("=== %s ===\n\n", filename)
	dumpGroup(f.Root(), "", 0)
}

func dumpGroup(g *container.Group, indent string, depth int) {
	if depth > 50 {
		fmt.Printf("%s[max depth reached]\n", indent)
		return
	}

	name := g.Name()
	if name == "" {
		name = "/"
	}
	fmt.Printf("%sGroup %q\n", indent, name)

	for _, attr := range g.AttrNames() {
		v, _ := g.Attr(attr)
		fmt.Printf("%s  @%s = %v\n", indent, attr, v)
	}

	for _, dsName := range g.Datasets() {
		ds, err := g.Dataset(dsName)
		if err != nil {
			fmt.Printf("%s  ERROR opening dataset %q: %v\n", indent, dsName, err)
			continue
		}
		if ds.IsVarLen() {
			fmt.Printf("%s  Dataset %q: %s, %d variable-length rows, codec=%s\n",
				indent, dsName, ds.DType(), ds.Rows(), ds.Codec())
			continue
		}
		fmt.Printf("%s  Dataset %q: %s, shape=%v, chunks=%v, codec=%s, shuffle=%v\n",
			indent, dsName, ds.DType(), ds.Shape(), ds.ChunkShape(), ds.Codec(), ds.Shuffled())
	}

	for _, childName := range g.Groups() {
		child, err := g.Group(childName)
		if err != nil {
			fmt.Printf("%s  ERROR opening group %q: %v\n", indent, childName, err)
			continue
		}
		dumpGroup(child, indent+"  ", depth+1)
	}
}
