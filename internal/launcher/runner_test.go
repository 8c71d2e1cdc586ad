package launcher

import (
	"strings"
	"testing"
)

func TestJoinCommandEscaping(t *testing.T) {
	got := joinCommand("ros2", []string{"run", "my_robot_controller", "pub'node"})
	want := `'ros2' 'run' 'my_robot_controller' 'pub'"'"'node'`
	if got != want {
		t.Fatalf("joinCommand = %q, want %q", got, want)
	}

	if got := joinCommand("ros2", nil); got != "'ros2'" {
		t.Fatalf("bare command = %q", got)
	}
	if got := shellEscape(""); got != "''" {
		t.Fatalf("empty escape = %q", got)
	}
}

func TestLocalRunnerRun(t *testing.T) {
	out, err := LocalRunner{}.Run("echo", "bridge")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(out) != "bridge" {
		t.Fatalf("unexpected output: %q", out)
	}
}
