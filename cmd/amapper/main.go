// Package main provides the amapper inspection CLI.
//
// It loads a declarative YAML mapping document against the bundled example
// namespace, eagerly compiles every registered pair and prints the
// constructed plan IR for each, so mapping configurations can be reviewed
// before they ship.
package main

import (
	"flag"
	"fmt"
	"os"
	"reflect"

	"go.uber.org/zap"

	"amapper/mapping"
	"amapper/plan"
	"amapper/store"
	"amapper/warehouse"
)

func main() {
	file := flag.String("f", "./examples/orders/mapping.yaml", "mapping document to inspect")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	reg, err := mapping.LoadFile(*file, exampleNamespace())
	if err != nil {
		log.Error("load mapping document", zap.String("file", *file), zap.Error(err))
		os.Exit(1)
	}

	b := plan.New(reg, plan.WithLogger(log))
	if err := b.CompileAll(); err != nil {
		log.Warn("some pairs failed to compile", zap.Error(err))
	}

	for _, pair := range reg.TypePairs() {
		desc, err := b.Describe(pair)
		if err != nil {
			log.Error("describe plan", zap.Stringer("pair", pair), zap.Error(err))
			continue
		}
		fmt.Printf("=== %s ===\n%s\n", pair, desc)
	}
}

// exampleNamespace exposes the bundled demo models to declarative
// documents.
func exampleNamespace() mapping.Namespace {
	return mapping.Namespace{
		"store.Order":        reflect.TypeOf((*store.Order)(nil)).Elem(),
		"store.Customer":     reflect.TypeOf((*store.Customer)(nil)).Elem(),
		"store.Contact":      reflect.TypeOf((*store.Contact)(nil)).Elem(),
		"store.Line":         reflect.TypeOf((*store.Line)(nil)).Elem(),
		"warehouse.Shipment": reflect.TypeOf((*warehouse.Shipment)(nil)).Elem(),
		"warehouse.Label":    reflect.TypeOf((*warehouse.Label)(nil)).Elem(),
	}
}
