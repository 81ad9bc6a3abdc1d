package cache

import (
	"fmt"
	"testing"
)

func BenchmarkCacheGet(b *testing.B) {
	c := New(Options{MaxEntries: 10000})
	for i := 0; i < 1000; i++ {
		c.Set(fmt.Sprintf("key%d", i), result(fmt.Sprintf("f%d.cs", i)))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("key999")
	}
}

func BenchmarkCacheSet(b *testing.B) {
	c := New(Options{MaxEntries: 10000})
	r := result("f.cs")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Set(fmt.Sprintf("key%d", i), r)
	}
}

func BenchmarkKey(b *testing.B) {
	src := make([]byte, 64*1024)
	s := Settings{Rules: []string{"S2259", "S3655", "S2583", "S4158"}, MaxSteps: 10000, MaxPointVisits: 6}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Key(src, s)
	}
}
