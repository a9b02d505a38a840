/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

// Package spt implements the Shared Spanning Tree protocol: its wire codec
// (beacon and goodbye messages) and the per-node state machine that
// processes them (neighborhood, adjacency, tree-info tables, ancestor
// election, link-quality tracking via a sliding ping window).
package spt

import "errors"

// ProtocolID is the 4-bit top-nibble protocol id carried by every SPT
// message, distinguishing it from the overlay protocol's id (13).
const ProtocolID = 3

// ProtocolVersion is the 4-bit SPT wire version this codec speaks.
const ProtocolVersion = 1

// reservedBeaconMagic is an undocumented literal that appears at the head
// of every beacon body on the wire, preserved verbatim for wire
// compatibility.
const reservedBeaconMagic = 0xff41

// Message types carried in the protocol prefix.
const (
	MsgBeacon  uint8 = 1
	MsgGoodbye uint8 = 2
)

// addressLength is the only supported sender-table address length:
// 4 address bytes (IPv4) + 2 port bytes.
const addressLength = 6
const addressBytes = addressLength - 2

// prefixBytes is the size of the shared protocol prefix: protocol id (4
// bits), version (4 bits), message length minus 3 (16 bits), message type
// (8 bits), overlay hash id (32 bits) -- 64 bits total.
const prefixBytes = 8

var (
	// ErrMalformed covers too-short messages and invalid sender-table
	// address lengths.
	ErrMalformed = errors.New("spt: malformed message")
	// ErrProtocolMismatch covers a wrong protocol id or overlay hash id.
	ErrProtocolMismatch = errors.New("spt: protocol mismatch")
	// ErrDeclaredLengthExceedsPacket is returned when a message's declared
	// length field is larger than the physical packet.
	ErrDeclaredLengthExceedsPacket = errors.New("spt: declared length exceeds packet size")
)

// SenderTable is the network-layer identity of the node originating a
// beacon or goodbye message.
type SenderTable struct {
	Hash          uint16
	Address       []byte // addressBytes (4) bytes, IPv4
	Port          uint16
	SourceLogical uint32 // this node's 32-bit overlay identifier
}

// AdjacencyAdvert is one entry of a beacon's advertised adjacency list.
type AdjacencyAdvert struct {
	ID      uint32
	Quality uint8 // masked to the low 7 bits on parse
}

// Beacon is the periodic SPT control message carrying tree state and
// adjacency info. TimestampSeconds is stored in seconds internally; the
// wire carries milliseconds (divided on parse, multiplied on encode).
type Beacon struct {
	Sender           SenderTable
	RootLogical      uint32
	ParentLogical    uint32
	Cost             uint32
	TimestampSeconds int64
	Adjacency        []AdjacencyAdvert
	Reliability      uint16
}

// Goodbye carries only the sender table. State.HandleGoodbye drops the
// sender from the adjacency and neighborhood tables, self-promoting if the
// sender was the ancestor.
type Goodbye struct {
	Sender SenderTable
}
