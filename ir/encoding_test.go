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
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"
)

func TestEncoding_RoundTrip(t *testing.T) {
	u := sampleUnit()
	buf, err := Marshal(&Module{Units: []*Unit{u}})
	require.NoError(t, err)
	m, err := Unmarshal(buf)
	require.NoError(t, err)
	require.Len(t, m.Units, 1)

	/* same text, new identities */
	r := m.Units[0]
	require.Equal(t, u.String(), r.String())
	require.NotSame(t, u.Code[0], r.Code[0])
	require.Same(t, r.Code[7], r.Code[1].Br)
	require.Same(t, r.Code[0], r.Export("_start").Entry)

	/* payload types survive */
	require.Equal(t, int32(0), r.Code[0].V.Const)
	p, ok := r.Code[7].V.Address()
	require.True(t, ok)
	require.Same(t, r.Code[7], p)

	/* the extern signature survives */
	require.Equal(t, *fnAdd, *r.Code[5].Fn)
}

func TestEncoding_Constants(t *testing.T) {
	for _, tc := range []struct {
		typ string
		val interface{}
	}{
		{"SystemInt32", int32(-7)},
		{"SystemInt64", int64(1) << 40},
		{"SystemUInt64", uint64(1) << 63},
		{"SystemByte", uint8(200)},
		{"SystemSingle", float32(1.5)},
		{"SystemDouble", -2.25},
		{"SystemBoolean", false},
		{"SystemString", "hello"},
	} {
		t.Run(tc.typ, func(t *testing.T) {
			pb := CreateBuilder("const")
			pb.RET(pb.Const(tc.typ, tc.val))
			buf, err := Marshal(&Module{Units: []*Unit{pb.Build()}})
			require.NoError(t, err)
			m, err := Unmarshal(buf)
			require.NoError(t, err)
			require.Equal(t, tc.val, m.Units[0].Code[0].V.Const)
		})
	}
}

func TestEncoding_Unresolved(t *testing.T) {
	br := uint32(3)
	for _, w := range []_WireModule{
		{Units: []_WireUnit{{Name: "a", Code: []_WireInstr{{Op: OP_jump, Br: &br}}}}},
		{Units: []_WireUnit{{Name: "b", Code: []_WireInstr{{Op: OP_nop}}, Exports: []_WireExport{{Name: "_x", Addr: 8}}}}},
		{Units: []_WireUnit{{Name: "c", Code: []_WireInstr{{Op: OP_return, V: 9}}}}},
		{Units: []_WireUnit{{Name: "d", Code: []_WireInstr{{Op: OpCode(99)}}}}},
		{Units: []_WireUnit{{Name: "e", Code: []_WireInstr{{Op: OP_extern, Fn: 1}}}}},
		{Units: []_WireUnit{{Name: "f", Values: []_WireValue{{Id: 1, Kind: K_const, Addr: &br}}, Code: []_WireInstr{{Op: OP_nop}}}}},
	} {
		buf, err := cbor.Marshal(w)
		require.NoError(t, err)
		_, err = Unmarshal(buf)
		require.Error(t, err, w.Units[0].Name)
	}
}

func TestEncoding_ForeignTarget(t *testing.T) {
	u := &Unit{Name: "foreign", Code: []*Instr{Jump(Nop())}}
	_, err := Marshal(&Module{Units: []*Unit{u}})
	require.Error(t, err)
}
