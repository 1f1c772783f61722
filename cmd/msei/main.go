// msei injects one command into the executive and prints the reply.
//
//	msei [flags] <dest> <cmd> [data...]
//
// For most subsystems the data argument is used verbatim as the DATA
// field. For DP_ the arguments are numeric parameters assembled into a
// raw big-endian DATA field, command-dependent.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/lwa-project/mcs"
)

func main() {
	addr := flag.String("addr", mcs.ExecAddr, "executive injection address")
	flag.Parse()

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: msei [flags] <dest> <cmd> [data...]")
		os.Exit(1)
	}
	dest, cmdName := flag.Arg(0), flag.Arg(1)

	sid := mcs.LookupSubsystem(dest)
	if sid == mcs.SidNone {
		fmt.Fprintf(os.Stderr, "msei: subsystem %q not recognized\n", dest)
		os.Exit(1)
	}
	cid := mcs.LookupCommand(cmdName)
	if cid == 0 {
		fmt.Fprintf(os.Stderr, "msei: command %q not recognized\n", cmdName)
		os.Exit(1)
	}

	env := &mcs.Envelope{
		SID:  sid,
		CID:  cid,
		When: time.Now(), // not scheduled; executes as time permits
	}
	if flag.NArg() > 2 {
		env.SetString(flag.Arg(2))
	} else {
		env.SetString("")
	}

	if sid == mcs.SidDP {
		if err := packDPData(env, cid, flag.Args()[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "msei: %v\n", err)
			os.Exit(1)
		}
		if env.DataLen >= 0 {
			fmt.Printf("msei: outbound DATA field is 0x%s (raw binary)\n",
				mcs.RawToHex(env.Payload()))
		}
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "msei: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if _, err := conn.Write(env.Marshal()); err != nil {
		fmt.Fprintf(os.Stderr, "msei: write: %v\n", err)
		os.Exit(1)
	}
	buf := make([]byte, mcs.EnvelopeSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		fmt.Fprintf(os.Stderr, "msei: read reply: %v\n", err)
		os.Exit(1)
	}
	reply, err := mcs.UnmarshalEnvelope(buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "msei: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ref=%d, accept=%d, summary=%s, data=<%s>\n",
		reply.Ref, reply.Accept, reply.Summary, reply.PayloadString())
}

// packDPData assembles the raw DATA field for DP_ commands from the
// remaining command-line arguments.
func packDPData(env *mcs.Envelope, cid mcs.CommandID, args []string) error {
	switch cid {
	case mcs.CmdPNG, mcs.CmdRPT, mcs.CmdSHT, mcs.CmdINI:
		return nil

	case mcs.CmdTBW:
		// uint8 TBW_BITS; uint32 TBW_TRIG_TIME; uint32 TBW_SAMPLES
		if len(args) < 3 {
			return fmt.Errorf("TBW args: TBW_BITS {0|1}, TBW_TRIG_TIME (uint32), TBW_SAMPLES (uint32)")
		}
		bits, err1 := strconv.ParseUint(args[0], 10, 8)
		trig, err2 := strconv.ParseUint(args[1], 10, 32)
		samp, err3 := strconv.ParseUint(args[2], 10, 32)
		if err1 != nil || err2 != nil || err3 != nil {
			return fmt.Errorf("TBW: bad numeric argument")
		}
		data := make([]byte, 9)
		data[0] = byte(bits)
		binary.BigEndian.PutUint32(data[1:5], uint32(trig))
		binary.BigEndian.PutUint32(data[5:9], uint32(samp))
		env.SetBytes(data)

	case mcs.CmdTBN:
		// float32 TBN_FREQ; uint16 TBN_BW; uint16 TBN_GAIN; uint8 sub_slot
		if len(args) < 4 {
			return fmt.Errorf("TBN args: TBN_FREQ (Hz), TBN_BW {1..7}, TBN_GAIN {0..15}, sub_slot {0..99}")
		}
		freq, err1 := strconv.ParseFloat(args[0], 32)
		bw, err2 := strconv.ParseUint(args[1], 10, 16)
		gain, err3 := strconv.ParseUint(args[2], 10, 16)
		slot, err4 := strconv.ParseUint(args[3], 10, 8)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return fmt.Errorf("TBN: bad numeric argument")
		}
		data := make([]byte, 9)
		binary.BigEndian.PutUint32(data[0:4], math.Float32bits(float32(freq)))
		binary.BigEndian.PutUint16(data[4:6], uint16(bw))
		binary.BigEndian.PutUint16(data[6:8], uint16(gain))
		data[8] = byte(slot)
		env.SetBytes(data)

	case mcs.CmdCLK:
		// uint32 CLK_SET_TIME
		if len(args) < 1 {
			return fmt.Errorf("CLK arg: CLK_SET_TIME (uint32)")
		}
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("CLK: bad numeric argument")
		}
		data := make([]byte, 4)
		binary.BigEndian.PutUint32(data, uint32(v))
		env.SetBytes(data)

	default:
		return fmt.Errorf("command %s not valid for DP_", cid)
	}
	return nil
}
