package intelbb

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// PrintState writes the batch's configuration and object table into
// writer as one JSON object.
func (b *BatchBuffer) PrintState(writer *jwriter.Writer) error {
	obj := writer.Object()
	obj.Name("Handle").Int(int(b.handle))
	obj.Name("Size").Int(b.size)
	obj.Name("Cursor").Int(b.cursor)
	obj.Name("RelocMode").Bool(b.enforceRelocs)
	obj.Name("Gen").Int(b.caps.Gen)
	obj.Name("Relocations").Int(len(b.relocs))
	obj.Name("Fence").Int(b.fences.Fence())

	objects := obj.Name("Objects").Array()
	for _, entry := range b.cache.all(b.handle) {
		one := objects.Object()
		one.Name("Handle").Int(int(entry.Handle))
		one.Name("Offset").Float64(float64(b.caps.Decanonicalize(entry.Offset)))
		one.Name("Size").Float64(float64(entry.size))
		one.Name("Flags").String(entry.Flags.String())
		one.End()
	}
	objects.End()
	obj.End()

	return writer.Error()
}

// BuildStateString renders PrintState output as a string.
func (b *BatchBuffer) BuildStateString() (string, error) {
	writer := jwriter.NewWriter()
	err := b.PrintState(&writer)
	if err != nil {
		return "", err
	}
	return string(writer.Bytes()), nil
}
