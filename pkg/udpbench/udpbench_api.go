package udpbench

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"
)

const ENV_FILE = ".env"

func NewBenchTest() *BenchTest {
	test := new(BenchTest)
	test.setting = new(benchSetting)
	test.out = os.Stdout
	test.now = time.Now
	test.dial = udpConnect
	test.listen = udpBind
	return test
}

func (test *BenchTest) Init() {
	test.dir = DIR_NONE
	test.service = DEFAULT_SERVICE
	test.timeout = DEFAULT_TIMEOUT
}

// SetOutput redirects the sockname and report lines.
func (test *BenchTest) SetOutput(w io.Writer) {
	test.out = w
}

func newApplication() *kingpin.Application {
	app := kingpin.New("udpbench", "Measure UDP throughput, optionally starting the peer with ssh.")
	app.UsageWriter(os.Stderr)
	app.ErrorWriter(os.Stderr)
	return app
}

// loadEnvFile reads default flag values from a .env file if there is one.
func loadEnvFile(name string) error {
	err := godotenv.Load(name)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (test *BenchTest) ParseArguments(args []string) error {
	if err := loadEnvFile(ENV_FILE); err != nil {
		Log.Errorf("Ignore %s: %v", ENV_FILE, err)
	}

	app := newApplication()

	// kingpin exits after printing help or a missing command, report that as
	// a usage error instead
	usageShown := false
	app.Terminate(func(int) { usageShown = true })

	// command flag definition
	var bufsizeFlag = app.Flag("bufsize", "set size of send or receive buffer").Short('b').
		Default("0").Envar("UDPBENCH_BUFSIZE").Int()
	var lengthFlag = app.Flag("length", "set length of udp payload").Short('l').
		Default("0").Envar("UDPBENCH_LENGTH").Uint()
	var portFlag = app.Flag("port", "udp port for bind or connect").Short('p').
		Default(DEFAULT_SERVICE).Envar("UDPBENCH_PORT").String()
	var remoteFlag = app.Flag("remotessh", "ssh host to start the remote udpbench").Short('s').
		Envar("UDPBENCH_REMOTE").String()
	var timeoutFlag = app.Flag("timeout", "send duration or receive timeout (s), 0 runs until interrupted").Short('t').
		Default(fmt.Sprint(DEFAULT_TIMEOUT)).Envar("UDPBENCH_TIMEOUT").Uint()
	var rateFlag = app.Flag("rate", "limit the sender to this many packets per second, 0 is unlimited").Short('r').
		Default("0").Envar("UDPBENCH_RATE").Uint()
	var programFlag = app.Flag("program", "udpbench binary to run on the remote host").
		Default(os.Args[0]).Envar("UDPBENCH_PROGRAM").String()
	var sshFlag = app.Flag("ssh", "ssh client used to start the remote udpbench").
		Default(DEFAULT_SSH).Envar("UDPBENCH_SSH").String()
	var debugFlag = app.Flag("debug", "debug mode").Bool()
	var infoFlag = app.Flag("info", "info mode").Bool()

	sendCmd := app.Command(SEND_NAME, "send udp packets to hostname")
	sendHost := sendCmd.Arg("hostname", "receiver to connect to").Required().String()
	recvCmd := app.Command(RECV_NAME, "receive udp packets")
	recvHost := recvCmd.Arg("hostname", "local address to bind, default any").String()

	// parse argument
	cmd, err := app.Parse(args)
	if usageShown {
		if err == nil {
			err = errors.New("usage requested")
		}
		return &UsageError{Err: err}
	}
	if err != nil {
		app.Errorf("%v", err)
		app.Usage(nil)
		return &UsageError{Err: err}
	}

	SetLogLevel(*debugFlag, *infoFlag)

	switch cmd {
	case sendCmd.FullCommand():
		test.dir = DIR_SEND
		test.hostname = *sendHost
	case recvCmd.FullCommand():
		test.dir = DIR_RECV
		test.hostname = *recvHost
	default:
		return &UsageError{Err: errors.Errorf("unknown command: %s", cmd)}
	}

	// check valid
	if *bufsizeFlag < 0 || *bufsizeFlag > MAX_BUFSIZE {
		return errors.Errorf("buffer size is out of range: %d", *bufsizeFlag)
	}
	if *lengthFlag > IP_MAXPACKET {
		return errors.Errorf("payload length is too large: %d", *lengthFlag)
	}

	test.setting.bufferSize = *bufsizeFlag
	test.setting.length = *lengthFlag
	test.setting.rate = *rateFlag
	test.service = *portFlag
	test.timeout = *timeoutFlag
	test.remoteHost = *remoteFlag

	if test.remoteHost != "" {
		test.launcher = NewLauncher(test.remoteHost, *programFlag)
		test.launcher.Shell = *sshFlag
	}

	test.Print()

	return nil
}

func (test *BenchTest) RunTest(ctx context.Context) error {
	if test.dir == DIR_SEND {
		if err := test.runSender(ctx); err != nil {
			Log.Debugf("Run sender failed. %v", err)

			return err
		}
	} else if test.dir == DIR_RECV {
		if err := test.runReceiver(ctx); err != nil {
			Log.Debugf("Run receiver failed. %v", err)

			return err
		}
	} else {
		return errors.New("no mode and direction")
	}

	return nil
}

func (test *BenchTest) runSender(ctx context.Context) error {
	if err := test.fillPayload(); err != nil {
		return err
	}

	hostname, service := test.hostname, test.service
	if test.launcher != nil {
		peer, err := test.startRemote(ctx, test.dir.Complement(), hostname, service)
		if err != nil {
			return err
		}
		hostname, service = peer.Addr, peer.Port
	}

	session, err := test.dial(ctx, hostname, service)
	if err != nil {
		return err
	}
	test.session = session

	if err := test.prepareSession(); err != nil {
		return err
	}

	test.createSenderAlarm(ctx)

	m, err := test.udpSend()
	if err != nil {
		return err
	}
	fmt.Fprintln(test.out, m)

	return test.waitRemote()
}

func (test *BenchTest) runReceiver(ctx context.Context) error {
	test.payload = make([]byte, test.setting.length)

	session, err := test.listen(ctx, test.hostname, test.service)
	if err != nil {
		return err
	}
	test.session = session

	if err := test.prepareSession(); err != nil {
		return err
	}

	if test.launcher != nil {
		addr, port, err := test.session.Sockname()
		if err != nil {
			return err
		}
		if _, err := test.startRemote(ctx, test.dir.Complement(), addr, port); err != nil {
			return err
		}
	}

	test.createReceiverAlarm(ctx)

	m, err := test.udpReceive()
	if err != nil {
		var idle *IdleError
		if errors.As(err, &idle) {
			Log.Errorf("Rejected: %v", m)
		}
		return err
	}
	fmt.Fprintln(test.out, m)

	return test.waitRemote()
}

// prepareSession prints the sockname line and tunes the socket buffer.
func (test *BenchTest) prepareSession() error {
	addr, port, err := test.session.Sockname()
	if err != nil {
		return err
	}
	fmt.Fprintln(test.out, socknameLine(addr, port))

	return test.session.SetBufferSize(test.setting.bufferSize)
}

// startRemote runs the peer in dir and reads its sockname line.
func (test *BenchTest) startRemote(ctx context.Context, dir Direction, hostname, service string) (Peer, error) {
	argv := test.launcher.Args(dir, hostname, service, test.setting, test.timeout)

	rp, err := test.launcher.Start(ctx, argv)
	if err != nil {
		return Peer{}, err
	}
	test.remote = rp

	peer, err := rp.Peername()
	if err != nil {
		return Peer{}, err
	}
	fmt.Fprintln(test.out, peer)

	return peer, nil
}

func (test *BenchTest) waitRemote() error {
	if test.remote == nil {
		return nil
	}
	return test.remote.Wait(test.out)
}

func (test *BenchTest) FreeTest() error {
	test.alarm.stop()
	test.remote.Abort()

	if err := test.session.Close(); err != nil {
		Log.Errorf("Session close failed, err = %v", err)

		return err
	}

	return nil
}

func (test *BenchTest) Print() {
	Log.Infof("udpbench started: %v", test)
}
