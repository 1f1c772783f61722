package client

import (
	"github.com/lwa-project/mcs"
	"github.com/lwa-project/mcs/internal/mib"
)

// HandlerFunc applies one accepted command's effect to the MIB. cmdata
// is the DATA field of the original command (recovered from the pending
// task queue); comment is the response's R-COMMENT. Each handler owns
// the mapping from the command's argument pattern to the MIB labels it
// updates.
type HandlerFunc func(st *mib.Store, cmdata string, comment []byte) mcs.MIBErr

type handlerKey struct {
	sid mcs.SubsystemID
	cid mcs.CommandID
}

// handlers maps (subsystem, command) to its MIB handler. PNG, RPT and
// SHT are handled uniformly before this table is consulted; a lookup
// miss reports a subsystem/command mismatch, or an unknown subsystem
// when the subsystem id is not registered.
var handlers = map[handlerKey]HandlerFunc{
	{mcs.SidSHL, mcs.CmdINI}: shlINI,
	{mcs.SidSHL, mcs.CmdTMP}: shlTMP,
	{mcs.SidSHL, mcs.CmdDIF}: shlDIF,
	{mcs.SidSHL, mcs.CmdPWR}: shlPWR,

	{mcs.SidASP, mcs.CmdINI}: aspINI,
	{mcs.SidASP, mcs.CmdFIL}: perStand("FILTER_"),
	{mcs.SidASP, mcs.CmdAT1}: perStand("AT1_"),
	{mcs.SidASP, mcs.CmdAT2}: perStand("AT2_"),
	{mcs.SidASP, mcs.CmdATS}: perStand("ATSPLIT_"),
	{mcs.SidASP, mcs.CmdFPW}: aspFPW,
	{mcs.SidASP, mcs.CmdRXP}: supplySwitch("ARXSUPPLY"),
	{mcs.SidASP, mcs.CmdFEP}: supplySwitch("FEESUPPLY"),

	// DP_ commands act on live hardware only; their DATA fields do not
	// correspond to anything in the MIB.
	{mcs.SidDP, mcs.CmdINI}: dpNoop,
	{mcs.SidDP, mcs.CmdTBW}: dpNoop,
	{mcs.SidDP, mcs.CmdTBN}: dpNoop,
	{mcs.SidDP, mcs.CmdDRX}: dpNoop,
	{mcs.SidDP, mcs.CmdBAM}: dpNoop,
	{mcs.SidDP, mcs.CmdFST}: dpNoop,
	{mcs.SidDP, mcs.CmdCLK}: dpNoop,
}

func dpNoop(*mib.Store, string, []byte) mcs.MIBErr {
	return 0
}
