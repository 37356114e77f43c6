package unitig

import (
	"fmt"
	"io"
	"strconv"

	"github.com/awalterschulze/gographviz"
)

// maxLabelSeq limits the edge sequence printed in a label.
const maxLabelSeq = 20

// WriteGraphviz renders the live graph as DOT.
func (g *Graph) WriteGraphviz(w io.Writer) error {
	gv := gographviz.NewGraph()
	if err := gv.SetName("G"); err != nil {
		return err
	}
	if err := gv.SetDir(true); err != nil {
		return err
	}
	if err := gv.SetStrict(false); err != nil {
		return err
	}
	for _, idx := range g.VertexIndices() {
		v := g.mustVertex(idx)
		attr := make(map[string]string)
		attr["color"] = "Green"
		attr["shape"] = "record"
		attr["label"] = "\"" + v.Name + "|" + strconv.Itoa(int(v.Index)) + "\""
		if err := gv.AddNode("G", strconv.Itoa(int(v.Index)), attr); err != nil {
			return err
		}
	}
	for _, id := range g.EdgeIDs() {
		e := &g.edges[id]
		seq := e.Name
		if len(seq) > maxLabelSeq {
			seq = seq[:maxLabelSeq/2] + ".." + seq[len(seq)-maxLabelSeq/2:]
		}
		attr := make(map[string]string)
		attr["color"] = "Blue"
		if e.InCycle() {
			attr["color"] = "Red"
		}
		attr["label"] = fmt.Sprintf("\"ID:%d %s len:%d cap:%.1f\"", e.ID, seq, len(e.Name), e.Capacity)
		if err := gv.AddEdge(strconv.Itoa(int(e.From)), strconv.Itoa(int(e.To)), true, attr); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, gv.String())
	return err
}
