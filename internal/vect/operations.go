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

package vect

import (
    `github.com/cloudwego/loopvec/internal/scev`
    `github.com/cloudwego/loopvec/ir`
    `github.com/cloudwego/loopvec/target`
    `github.com/oleiade/lane`
)

// analyzeOperations finds the statements that must be vectorized, checks
// that the target supports them and picks the vectorization factor.
func analyzeOperations(info *LoopInfo, t target.Target) error {
    if err := markRelevant(info); err != nil {
        return err
    }

    /* values computed in the loop and used afterwards must be recomputable */
    if err := checkLiveOuts(info); err != nil {
        return err
    }

    /* resolve the vector types */
    for i := range info.Stmts {
        if st := &info.Stmts[i]; st.Relevant {
            if err := info.legalize(st, t); err != nil {
                return err
            }
        }
    }

    /* must have something to vectorize */
    if info.VF <= 1 {
        return failf(UnsupportedOperation, "nothing to vectorize in %s", info.Loop)
    }

    /* must run at least one vector iteration */
    n, known := scev.IsConst(info.TripCount)
    if known && n < int64(info.VF) {
        return failf(IterationCountTooSmall, "%s iterates %d times, less than %d", info.Loop, n, info.VF)
    }

    /* leftover iterations need a scalar epilogue */
    if info.Epilogue = !known || n % int64(info.VF) != 0 || info.Peel.Kind != PeelNone; info.Epilogue {
        if err := checkPeelable(info); err != nil {
            return err
        }
    }

    /* all checked */
    return nil
}

// markRelevant marks the stores and, transitively, every statement
// computing a value they store.
func markRelevant(info *LoopInfo) error {
    q := lane.NewQueue()
    for _, id := range info.Writes {
        st := info.Stmt(info.Ref(id).Stmt)
        st.Relevant = true
        q.Enqueue(st)
    }

    /* propagate to the operands */
    for !q.Empty() {
        st := q.Dequeue().(*StmtInfo)
        for _, r := range operands(st.Node) {
            p, ok := info.ev.DefUse().Def[r]

            /* values from outside of the loop are broadcast */
            if !ok || !info.ev.InLoop(r) {
                continue
            }

            /* constants are broadcast as well */
            switch p.(type) {
                case *ir.IrConstInt, *ir.IrConstFloat: continue
            }

            /* carried values can only be inductions, which are not data */
            if _, ok := p.(*ir.IrPhi); ok {
                return failf(UnsupportedOperation, "induction %s is used as data", r)
            }

            /* must be a statement that can be vectorized */
            def, ok := info.def(r)
            if !ok || def.Kind == StmtUndefined || def.Kind == StmtStore {
                return failf(UnsupportedOperation, "cannot vectorize the definition of %s: %s", r, p)
            }

            /* mark it */
            if !def.Relevant {
                def.Relevant = true
                q.Enqueue(def)
            }
        }
    }

    /* all done */
    return nil
}

// operands returns the registers an instruction uses as data, excluding
// memory states and addresses.
func operands(p ir.IrNode) []ir.Reg {
    switch v := p.(type) {
        case *ir.IrStore      : return []ir.Reg { v.V }
        case *ir.IrCopy       : return []ir.Reg { v.V }
        case *ir.IrUnaryExpr  : return []ir.Reg { v.V }
        case *ir.IrBinaryExpr : return []ir.Reg { v.X, v.Y }
        case *ir.IrSelect     : return []ir.Reg { v.X, v.Y, v.T, v.F }
        default               : return nil
    }
}

// liveOuts returns the values defined in the loop and used after it, in
// block order.
func liveOuts(fn *ir.Func, loop *ir.Loop) (r []ir.Reg) {
    du := fn.DefUse()
    for _, bb := range loop.Blocks {
        for _, p := range bb.Phi {
            r = appendLiveOut(r, du, loop, p)
        }
        for _, p := range bb.Ins {
            r = appendLiveOut(r, du, loop, p)
        }
    }
    return
}

func appendLiveOut(buf []ir.Reg, du *ir.DefUse, loop *ir.Loop, p ir.IrNode) []ir.Reg {
    if d, ok := p.(ir.IrDefinitions); ok {
        for _, r := range d.Definitions() {
            for _, u := range du.Uses[*r] {
                if !loop.Contains(u.Block) {
                    buf = append(buf, *r)
                    break
                }
            }
        }
    }
    return buf
}

func checkLiveOuts(info *LoopInfo) error {
    for _, r := range liveOuts(info.Func, info.Loop) {
        if !r.IsMem() {
            if c := info.ev.Of(r); !c.IsAffine() {
                return failf(UnsupportedOperation, "%s is used after the loop but evolves as %s", r, c)
            } else if _, ok := c.ConstStep(); !ok {
                return failf(UnsupportedOperation, "%s is used after the loop but has a symbolic step", r)
            }
        }
    }
    return nil
}

// scalarType returns the type of the values a statement works on.
func scalarType(fn *ir.Func, st *StmtInfo) ir.Type {
    switch v := st.Node.(type) {
        case *ir.IrLoad       : return fn.TypeOf(v.R)
        case *ir.IrStore      : return fn.TypeOf(v.V)
        case *ir.IrCopy       : return fn.TypeOf(v.R)
        case *ir.IrUnaryExpr  : return fn.TypeOf(v.R)
        case *ir.IrBinaryExpr : return fn.TypeOf(v.R)
        case *ir.IrSelect     : return fn.TypeOf(v.R)
        default               : panic("vectorize: statement without a type: " + st.Node.String())
    }
}

// legalize picks the vector type of a relevant statement and checks that
// the target supports the operation.
func (self *LoopInfo) legalize(st *StmtInfo, t target.Target) error {
    fn := self.Func
    et := scalarType(fn, st)
    vf := target.Lanes(t, et)

    /* the type must be vectorizable */
    if vf <= 1 {
        return failf(UnsupportedOperation, "no vector type for %s in %s", et, st.Node)
    }

    /* every statement must use the same number of lanes */
    if err := self.fixVF(vf, st); err != nil {
        return err
    }

    /* check the operation */
    vt := et.Vector(vf)
    st.VecType = vt

    /* ask the target */
    switch v := st.Node.(type) {
        case *ir.IrLoad: {
            return nil
        }

        /* stores */
        case *ir.IrStore: {
            return nil
        }

        /* copies */
        case *ir.IrCopy: {
            if !t.SupportsCopy(vt) {
                return failf(UnsupportedOperation, "%s does not support copies of %s", t.Name(), vt)
            } else {
                return nil
            }
        }

        /* unary operators */
        case *ir.IrUnaryExpr: {
            if !t.SupportsUnary(v.Op, vt) {
                return failf(UnsupportedOperation, "%s does not support %s on %s", t.Name(), v.Op, vt)
            } else {
                return nil
            }
        }

        /* binary operators, comparisons produce booleans which are never stored */
        case *ir.IrBinaryExpr: {
            if v.Op.IsCompare() {
                return failf(UnsupportedOperation, "comparison %s is used as data", v.R)
            } else if !t.SupportsBinary(v.Op, vt) {
                return failf(UnsupportedOperation, "%s does not support %s on %s", t.Name(), v.Op, vt)
            } else {
                return nil
            }
        }

        /* selections compare and blend */
        case *ir.IrSelect: {
            return self.legalizeSelect(v, vt, st, t)
        }

        /* should not happen */
        default: {
            return failf(UnsupportedOperation, "cannot vectorize %s", st.Node)
        }
    }
}

func (self *LoopInfo) legalizeSelect(p *ir.IrSelect, vt ir.Type, st *StmtInfo, t target.Target) error {
    ct := self.Func.TypeOf(p.X)
    cf := target.Lanes(t, ct)

    /* the compared values must have the same number of lanes */
    if cf <= 1 {
        return failf(UnsupportedOperation, "no vector type for %s in %s", ct, p)
    } else if err := self.fixVF(cf, st); err != nil {
        return err
    }

    /* check the comparison and the blend */
    switch cv := ct.Vector(cf); {
        case !t.SupportsBinary(p.Op, cv) : return failf(UnsupportedOperation, "%s does not support %s on %s", t.Name(), p.Op, cv)
        case !t.SupportsSelect(vt)       : return failf(UnsupportedOperation, "%s does not support selecting %s", t.Name(), vt)
        default                          : return nil
    }
}

func (self *LoopInfo) fixVF(vf int, st *StmtInfo) error {
    if self.VF == 0 {
        self.VF = vf
        return nil
    } else if self.VF != vf {
        return failf(MixedVectorWidths, "%s needs %d lanes, the loop uses %d", st.Node, vf, self.VF)
    } else {
        return nil
    }
}

// checkPeelable makes sure the loop can be split into two copies.
func checkPeelable(info *LoopInfo) error {
    for _, p := range info.Header.Phi {
        if len(p.V) != 2 {
            return failf(CannotConstructEpilogue, "%s has %d incoming values", p.R, len(p.V))
        }
    }

    /* the exit must lead to a block of its own */
    if len(info.Exit.Pred) != 1 || len(info.Exit.Phi) != 0 {
        return failf(CannotConstructEpilogue, "exit of %s is shared", info.Loop)
    }

    /* all checked */
    return nil
}
