package domain

// ResourceSnapshot 是一次采样得到的集群容量与 limits 总量，不做持久化。
type ResourceSnapshot struct {
	TotalCPUCores      float64 `json:"total_cpu_cores"`
	TotalMemoryGiB     float64 `json:"total_memory_gib"`
	UsedCPULimitCores  float64 `json:"used_cpu_limit_cores"`
	UsedMemoryLimitGiB float64 `json:"used_memory_limit_gib"`
}

func (s ResourceSnapshot) CPUUtilization() float64 {
	if s.TotalCPUCores <= 0 {
		return 0
	}
	return s.UsedCPULimitCores / s.TotalCPUCores * 100
}

func (s ResourceSnapshot) MemoryUtilization() float64 {
	if s.TotalMemoryGiB <= 0 {
		return 0
	}
	return s.UsedMemoryLimitGiB / s.TotalMemoryGiB * 100
}

// Exceeds 判断 CPU 或内存利用率是否超过阈值（百分比）。
func (s ResourceSnapshot) Exceeds(threshold float64) bool {
	return s.CPUUtilization() > threshold || s.MemoryUtilization() > threshold
}
