package model

import (
	"encoding/json"
	"fmt"
)

const unlimited = "unlimited"

// Quota 数量配额，可以是整数或 "unlimited"
type Quota struct {
	Limit     int
	Unlimited bool
}

func Limit(n int) Quota { return Quota{Limit: n} }

// Unlimited 不限量
var Unlimited = Quota{Unlimited: true}

// Allows 配额大于 0 或不限量
func (q Quota) Allows() bool {
	return q.Unlimited || q.Limit > 0
}

func (q Quota) MarshalJSON() ([]byte, error) {
	if q.Unlimited {
		return json.Marshal(unlimited)
	}
	return json.Marshal(q.Limit)
}

func (q *Quota) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != unlimited {
			return fmt.Errorf("invalid quota %q", s)
		}
		*q = Unlimited
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid quota %s: %w", data, err)
	}
	*q = Limit(n)
	return nil
}

// PlanFeatures 计划能力表，由 planType 推导，不落盘
type PlanFeatures struct {
	MaxProjects       Quota `json:"maxProjects"`
	AIRequestsPerDay  Quota `json:"aiRequestsPerDay"`
	StorageMB         Quota `json:"storageMB"`
	APIAccess         bool  `json:"apiAccess"`
	PrioritySupport   bool  `json:"prioritySupport"`
	AdvancedAnalytics bool  `json:"advancedAnalytics"`
	CustomBranding    bool  `json:"customBranding"`
	ExportData        bool  `json:"exportData"`
}

var planFeatures = map[PlanType]PlanFeatures{
	PlanFree: {
		MaxProjects:      Limit(3),
		AIRequestsPerDay: Limit(20),
		StorageMB:        Limit(100),
	},
	PlanTrial: {
		MaxProjects:       Limit(10),
		AIRequestsPerDay:  Limit(200),
		StorageMB:         Limit(1024),
		APIAccess:         true,
		AdvancedAnalytics: true,
		ExportData:        true,
	},
	PlanPro: {
		MaxProjects:       Unlimited,
		AIRequestsPerDay:  Unlimited,
		StorageMB:         Limit(10240),
		APIAccess:         true,
		PrioritySupport:   true,
		AdvancedAnalytics: true,
		CustomBranding:    true,
		ExportData:        true,
	},
}

// FeaturesFor 未知计划按 free 处理
func FeaturesFor(plan PlanType) PlanFeatures {
	if f, ok := planFeatures[plan]; ok {
		return f
	}
	return planFeatures[PlanFree]
}

// Allows 按功能名（JSON 字段名）判断是否可用，未知功能返回 false
func (f PlanFeatures) Allows(feature string) bool {
	switch feature {
	case "maxProjects":
		return f.MaxProjects.Allows()
	case "aiRequestsPerDay":
		return f.AIRequestsPerDay.Allows()
	case "storageMB":
		return f.StorageMB.Allows()
	case "apiAccess":
		return f.APIAccess
	case "prioritySupport":
		return f.PrioritySupport
	case "advancedAnalytics":
		return f.AdvancedAnalytics
	case "customBranding":
		return f.CustomBranding
	case "exportData":
		return f.ExportData
	default:
		return false
	}
}

// FeatureSnapshot 当前计划能力与订阅快照
type FeatureSnapshot struct {
	PlanType     PlanType          `json:"planType"`
	Features     PlanFeatures      `json:"features"`
	Subscription *UserSubscription `json:"subscription"`
}

// SubscriptionStats 订阅统计
type SubscriptionStats struct {
	Total            int              `json:"total"`
	ByStatus         map[Status]int   `json:"byStatus"`
	ByPlan           map[PlanType]int `json:"byPlan"`
	ActiveByPlan     map[PlanType]int `json:"activeByPlan"`
	MonthlyRevenue   float64          `json:"monthlyRevenue"`
	TrialConversions int              `json:"trialConversions"`
	ConversionRate   float64          `json:"conversionRate"` // 转化用户 / 试用用户
}
