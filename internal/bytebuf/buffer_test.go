package bytebuf

import "testing"

func TestAppendAndBytes(t *testing.T) {
	buf := New(0)
	buf.AppendText("hel")
	buf.AppendBytes([]byte("lo"))
	buf.AppendByte('!')
	if got := string(buf.Bytes()); got != "hello!" {
		t.Fatalf("got %q, want %q", got, "hello!")
	}
	if buf.Len() != 6 {
		t.Fatalf("len = %d, want 6", buf.Len())
	}
}

func TestPop(t *testing.T) {
	buf := New(0)
	if _, ok := buf.Pop(); ok {
		t.Fatal("pop on empty buffer should report !ok")
	}
	buf.AppendText("ab")
	c, ok := buf.Pop()
	if !ok || c != 'b' {
		t.Fatalf("pop = (%q, %v), want ('b', true)", c, ok)
	}
	if buf.Len() != 1 {
		t.Fatalf("len after pop = %d, want 1", buf.Len())
	}
}

func TestCompare(t *testing.T) {
	a := New(0)
	a.AppendText("abc")
	b := New(0)
	b.AppendText("abd")
	if a.Compare(b) >= 0 {
		t.Fatalf("expected abc < abd")
	}
	c := New(0)
	c.AppendText("ab")
	if c.Compare(a) >= 0 {
		t.Fatalf("expected shorter prefix to be less")
	}
	if a.CompareText("abc") != 0 {
		t.Fatalf("expected equality against matching text")
	}
}

func TestToTextCopyIsIndependent(t *testing.T) {
	buf := New(0)
	buf.AppendText("hello")
	s := buf.ToTextCopy()
	buf.AppendByte('!')
	if s != "hello" {
		t.Fatalf("ToTextCopy was mutated by later append: %q", s)
	}
}
