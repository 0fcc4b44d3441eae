/*
 * Copyright 2022 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ir

import (
    `fmt`
    `html`
    `strings`
)

func dotrows(buf []string, w *int, s string) []string {
    for _, ss := range strings.Split(s, "\n") {
        vv := strings.ReplaceAll(html.EscapeString(ss), " ", "&nbsp;")
        buf = append(buf, fmt.Sprintf("<tr><td align=\"left\">%s</td></tr>\n", vv))
        if len(ss) > *w {
            *w = len(ss)
        }
    }
    return buf
}

func dotblock(fn *Func, bb *BasicBlock) string {
    var w int
    var phi []string
    var ins []string
    var term []string
    var meta []string

    /* dump the nodes */
    for _, v := range bb.Phi { phi = dotrows(phi, &w, v.String()) }
    for _, v := range bb.Ins { ins = dotrows(ins, &w, v.String()) }
    term = dotrows(term, &w, bb.Term.String())

    /* predecessors */
    var pred []string
    for _, d := range bb.Pred {
        pred = append(pred, d.String())
    }

    /* immediate dominator */
    idom := "∅"
    if d := fn.Dom.DominatedBy[bb.Id]; d != nil {
        idom = d.String()
    }

    /* loop membership */
    loop := "∅"
    if lp := fn.Loops.LoopOf(bb); lp != nil {
        loop = lp.String()
    }

    /* add the metadata */
    meta = dotrows(meta, &w, fmt.Sprintf("# pred = {%s}", strings.Join(pred, ", ")))
    meta = dotrows(meta, &w, fmt.Sprintf("# idom = %s", idom))
    meta = dotrows(meta, &w, fmt.Sprintf("# loop = %s", loop))

    /* build the table */
    buf := []string {
        "<table border=\"1\" cellborder=\"0\" cellspacing=\"0\">\n",
        fmt.Sprintf("<tr><td width=\"%d\">bb_%d</td></tr>\n", w * 10 + 5, bb.Id),
        "<hr/>\n",
    }

    /* add all the sections */
    buf = append(buf, meta...)
    if len(phi) != 0 { buf = append(append(buf, "<hr/>\n"), phi...) }
    if len(ins) != 0 { buf = append(append(buf, "<hr/>\n"), ins...) }

    /* the terminator is always present */
    buf = append(append(buf, "<hr/>\n"), term...)
    buf = append(buf, "</table>")
    return strings.Join(buf, "")
}

// Dot renders the CFG of a function in Graphviz format.
func Dot(fn *Func) string {
    buf := []string {
        "digraph CFG {",
        `    xdotversion = "15"`,
        `    graph [ fontname = "Fira Code" ]`,
        `    node [ fontname = "Fira Code" fontsize="16" shape = "plaintext" ]`,
        `    edge [ fontname = "Fira Code" ]`,
        `    START [ shape = "circle" ]`,
        fmt.Sprintf(`    START -> bb_%d`, fn.Root.Id),
    }

    /* dump every block */
    for _, bb := range fn.Blocks {
        buf = append(buf, fmt.Sprintf(`    bb_%d [ label = < %s > ]`, bb.Id, dotblock(fn, bb)))
        switch t := bb.Term.(type) {
            case *IrJump   : buf = append(buf, fmt.Sprintf(`    bb_%d -> bb_%d`, bb.Id, t.To.Id))
            case *IrBranch : buf = append(buf, fmt.Sprintf(`    bb_%d -> bb_%d [ label = "T" ]`, bb.Id, t.T.Id))
            case *IrReturn : buf = append(buf, fmt.Sprintf(`    bb_%d -> END`, bb.Id))
        }

        /* the false branch */
        if t, ok := bb.Term.(*IrBranch); ok {
            buf = append(buf, fmt.Sprintf(`    bb_%d -> bb_%d [ label = "F" ]`, bb.Id, t.F.Id))
        }
    }

    /* the exit node */
    buf = append(buf, `    END [ shape = "doublecircle" ]`)
    buf = append(buf, "}")
    return strings.Join(buf, "\n")
}
